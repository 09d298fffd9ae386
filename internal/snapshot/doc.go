// Package snapshot stores rendered pages in a blob bucket.
//
// Each page is written as a PNG object next to a JSON manifest:
//
//	<prefix>/page-000001.png
//	<prefix>/page-000002.png
//	<prefix>/manifest.json
//
// Any gocloud.dev/blob driver works (file://, mem://, s3://, gs://).
//
// # Usage
//
//	store, err := snapshot.Open(ctx, bucket, "renders/report", snapshot.Source{
//	    URL:         url,
//	    TotalLength: info.TotalLength,
//	    PageCount:   doc.NumPages(),
//	})
//
//	for n := 1; n <= doc.NumPages(); n++ {
//	    if store.Has(n) {
//	        continue
//	    }
//	    // render into canvas ...
//	    if _, err := store.PutPage(ctx, n, canvas.Image()); err != nil {
//	        return err
//	    }
//	}
//
//	manifest, err := store.Commit(ctx)
package snapshot
