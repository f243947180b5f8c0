package ali

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
	"github.com/reusedev/detect-hub/config"
	"github.com/reusedev/detect-hub/internal/consts"
)

var (
	OssClient *Client
)

type Client struct {
	client     *oss.Client
	endpoint   string
	bucketName string
	directory  string
}

func InitOSS(config config.AliOss) {
	credential := credentials.NewStaticCredentialsProvider(config.AccessKeyId, config.AccessKeySecret, "")
	cfg := oss.LoadDefaultConfig().
		WithCredentialsProvider(credential).
		WithEndpoint(config.Endpoint).WithRegion(config.Region)
	client := oss.NewClient(cfg)
	if client == nil {
		panic("create oss client failed")
	}
	OssClient = &Client{
		client:     client,
		endpoint:   config.Endpoint,
		bucketName: config.Bucket,
		directory:  config.Directory,
	}
}

func (o *Client) Supplier() consts.StorageSupplier {
	return consts.StorageAliOss
}

// Write stores data under the configured directory and returns the object key.
func (o *Client) Write(ctx context.Context, name string, data []byte) (string, map[string]string, error) {
	fName := path.Base(name)
	key := o.fullPath(fName)
	if err := o.upload(ctx, fName, key, bytes.NewReader(data)); err != nil {
		return "", nil, err
	}
	return key, map[string]string{consts.MetaObjectKey: key, consts.MetaBucket: o.bucketName}, nil
}

func (o *Client) Read(ctx context.Context, key string) ([]byte, error) {
	ret, err := o.client.GetObject(ctx, &oss.GetObjectRequest{Bucket: oss.Ptr(o.bucketName), Key: oss.Ptr(key)})
	if err != nil {
		return nil, err
	}
	defer ret.Body.Close()
	return io.ReadAll(ret.Body)
}

func (o *Client) Exists(ctx context.Context, key string) (bool, error) {
	return o.client.IsObjectExist(ctx, o.bucketName, key)
}

func (o *Client) Size(ctx context.Context, key string) (int64, error) {
	ret, err := o.client.HeadObject(ctx, &oss.HeadObjectRequest{Bucket: oss.Ptr(o.bucketName), Key: oss.Ptr(key)})
	if err != nil {
		return 0, err
	}
	return ret.ContentLength, nil
}

func (o *Client) Delete(ctx context.Context, key string) error {
	_, err := o.client.DeleteObject(ctx, &oss.DeleteObjectRequest{Bucket: oss.Ptr(o.bucketName), Key: oss.Ptr(key)})
	return err
}

func (o *Client) URL(ctx context.Context, key string, expire time.Duration) (string, error) {
	ret, err := o.client.Presign(ctx, &oss.GetObjectRequest{Bucket: oss.Ptr(o.bucketName), Key: oss.Ptr(key)}, oss.PresignExpires(expire))
	if err != nil {
		return "", err
	}
	return ret.URL, nil
}

func (o *Client) fullPath(fName string) string {
	return o.directory + fName
}

func (o *Client) upload(ctx context.Context, fName, key string, reader io.Reader) error {
	request := &oss.PutObjectRequest{
		Bucket:             oss.Ptr(o.bucketName),
		Key:                oss.Ptr(key),
		Body:               reader,
		ContentDisposition: oss.Ptr(fmt.Sprintf("attachment; filename=\"%s\"", fName)),
	}
	_, err := o.client.PutObject(ctx, request)
	return err
}
