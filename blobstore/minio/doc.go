// Package minio serves blobstore reads from MinIO and other S3-compatible
// object stores through the MinIO client.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "lists/")
//
// Each Blob.ReadAt issues one ranged GET. No AWS SDK dependency is needed,
// which keeps air-gapped deployments simple.
package minio
