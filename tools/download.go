package tools

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/reusedev/detect-hub/internal/modules/http_client"
)

// MaxDownloadBytes caps online image intake.
const MaxDownloadBytes = 32 << 20

const maxRedirects = 5

// ImageFetcher downloads caller supplied image urls. Only http and https are
// fetched. Unless AllowPrivate is set, connections to loopback, private,
// link-local and unspecified addresses are refused when dialing, so redirects
// and DNS answers cannot reach internal hosts either. A non-empty AllowedHosts
// restricts the host names; an entry starting with "." matches subdomains.
type ImageFetcher struct {
	AllowedHosts []string
	AllowPrivate bool
	client       *http_client.HttpClient
}

func NewImageFetcher(allowedHosts []string, allowPrivate bool) *ImageFetcher {
	f := &ImageFetcher{AllowedHosts: allowedHosts, AllowPrivate: allowPrivate}
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second, Control: f.control}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// a proxy would dial on our behalf and skip the address check
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	f.client = http_client.NewWithClient(&http.Client{
		Timeout:   time.Minute,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return f.checkURL(req.URL)
		},
	})
	return f
}

// CheckURL reports whether raw may be fetched, before any connection is made.
func (f *ImageFetcher) CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	return f.checkURL(u)
}

func (f *ImageFetcher) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme %q not allowed", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("url has no host")
	}
	if len(f.AllowedHosts) == 0 {
		return nil
	}
	for _, allowed := range f.AllowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || (strings.HasPrefix(allowed, ".") && strings.HasSuffix(host, allowed)) {
			return nil
		}
	}
	return fmt.Errorf("host %q not allowed", host)
}

func (f *ImageFetcher) control(_, address string, _ syscall.RawConn) error {
	if f.AllowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !PublicIP(ip) {
		return fmt.Errorf("address %s not allowed", host)
	}
	return nil
}

// PublicIP is false for loopback, private, link-local, multicast and unspecified addresses.
func PublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

// Get downloads the image behind raw, returning its bytes and a file name
// taken from Content-Disposition or the url path.
func (f *ImageFetcher) Get(ctx context.Context, raw string) (bytes []byte, fName string, err error) {
	if err = f.CheckURL(raw); err != nil {
		return
	}
	req, err := f.client.NewRequest(http.MethodGet, raw, http_client.WithContext(ctx))
	if err != nil {
		return
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("failed to download image, status code: %d", resp.StatusCode)
		return
	}

	bytes, err = io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return
	}
	if len(bytes) > MaxDownloadBytes {
		err = fmt.Errorf("image larger than %d bytes", MaxDownloadBytes)
		return
	}
	if resp.Header.Get("Content-Disposition") != "" {
		parts := strings.Split(resp.Header.Get("Content-Disposition"), ";")
		for _, part := range parts {
			if strings.Contains(part, "filename=") {
				fName = strings.Trim(strings.Split(part, "=")[1], "\"")
				break
			}
		}
	}
	if fName == "" {
		fName = path.Base(resp.Request.URL.Path)
		if fName == "/" || fName == "." {
			fName = ""
		}
	}
	return
}
