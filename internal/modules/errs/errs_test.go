package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, HTTPStatus(Validation("threshold %v", 1.5)))
	require.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("session %s", "x")))
	require.Equal(t, http.StatusBadGateway, HTTPStatus(Inference(errors.New("timeout"), "predict")))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(Persistence(errors.New("disk full"), "commit")))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestPersistenceKeepsClassification(t *testing.T) {
	nf := NotFound("session %s", "abc")
	err := Persistence(fmt.Errorf("lookup: %w", nf), "save counts")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrPersistence)

	cause := errors.New("deadlock")
	err = Persistence(cause, "save counts")
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, cause)
}
