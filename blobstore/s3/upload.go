package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/mmapbits/blobstore"
	"github.com/hupe1980/mmapbits/internal/hash"
)

// UploadConfig tunes streaming uploads made through Store.Create.
// Zero PartSize or Concurrency keeps the manager's value.
type UploadConfig struct {
	PartSize    int64
	Concurrency int
	// EnableChecksum asks S3 to verify every part with CRC32C.
	EnableChecksum bool
	// LeavePartsOnError keeps a failed multipart upload for inspection
	// instead of aborting it.
	LeavePartsOnError bool
}

// DefaultUploadConfig uses 8 MiB parts, five in flight, with checksums.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{PartSize: 8 << 20, Concurrency: 5, EnableChecksum: true}
}

func (c UploadConfig) apply(u *manager.Uploader) {
	if c.PartSize > 0 {
		u.PartSize = c.PartSize
	}
	if c.Concurrency > 0 {
		u.Concurrency = c.Concurrency
	}
	u.LeavePartsOnError = c.LeavePartsOnError
}

// crc32cHeader renders data's CRC32C the way S3 expects it: big-endian, base64.
func crc32cHeader(data []byte) string {
	sum := binary.BigEndian.AppendUint32(nil, hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(sum)
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(s.bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(crc32cHeader(data)),
	})
	return err
}

// streamObject starts a manager upload of key fed by the returned writer.
// An aborted stream makes the manager abort any multipart upload it began,
// unless LeavePartsOnError is set.
func (s *Store) streamObject(ctx context.Context, key string) blobstore.WritableBlob {
	uploader := manager.NewUploader(s.client, s.upload.apply)
	return blobstore.NewPipeWriter(func(r io.Reader) error {
		in := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   r,
		}
		if s.upload.EnableChecksum {
			in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
		}
		_, err := uploader.Upload(ctx, in)
		return err
	})
}
