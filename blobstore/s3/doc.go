// Package s3 implements blobstore.Store on Amazon S3.
//
//	store, err := s3.Open(ctx, "my-bucket", "matrices/")
//	if err != nil {
//	    return err
//	}
//	err = persist.Save(ctx, store, "features", block)
//
// Small objects are written with a single PutObject carrying a CRC32C
// checksum. Larger objects go through the multipart upload manager.
package s3
