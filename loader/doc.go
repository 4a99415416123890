// Package loader populates a bit store from line-oriented input.
//
// A Strategy decides how each record maps to byte/mask pairs. The loader
// reads bounded lines and stops at the first error, reporting its line
// number:
//
//	stats, err := loader.LoadFile(ctx, nil, bits, "input.txt", loader.AddressStrategy())
//	var lerr *loader.LineError
//	if errors.As(err, &lerr) {
//	    log.Printf("bad record on line %d", lerr.Line)
//	}
//
// Inputs can also come from any blobstore.BlobStore via LoadBlob, which
// streams the blob with ranged reads. When Options.Controller is set, reads
// are rate limited and concurrent loads are bounded by the controller.
package loader
