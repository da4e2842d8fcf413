package config

import "time"

// BlobConfig selects where uploaded booking documents are stored.
//
//	BLOB_DRIVER: fs|s3|memory (default fs)
//	BLOB_FS_ROOT: directory root when driver=fs (default ./uploads)
//	BLOB_S3_BUCKET, BLOB_S3_REGION, BLOB_S3_ENDPOINT, BLOB_S3_PATH_STYLE
//	BLOB_PRESIGN_TTL: lifetime of presigned download URLs (s3 only)
type BlobConfig struct {
	Driver      string
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
	PresignTTL  time.Duration
}

// LoadBlobConfig reads the BLOB_* variables.
func LoadBlobConfig() BlobConfig {
	return BlobConfig{
		Driver:      getenv("BLOB_DRIVER", "fs"),
		FSRoot:      getenv("BLOB_FS_ROOT", "uploads"),
		S3Bucket:    getenv("BLOB_S3_BUCKET", ""),
		S3Region:    getenv("BLOB_S3_REGION", "us-east-1"),
		S3Endpoint:  getenv("BLOB_S3_ENDPOINT", ""),
		S3PathStyle: envBool("BLOB_S3_PATH_STYLE", false),
		PresignTTL:  envDur("BLOB_PRESIGN_TTL", 15*time.Minute),
	}
}
