// Package photomatch embeds the product photo catalog in a Go program.
//
// The client opens a local SQLite catalog, stores photos on disk and ranks
// products by visual similarity using the caller's feature extractor.
//
//	client, _ := photomatch.New(ctx,
//	    photomatch.WithSQLite("data/catalog.db"),
//	    photomatch.WithUploadsDir("data"),
//	    photomatch.WithExtractor(myModel),
//	)
//	defer client.Close()
//
//	report, _ := client.Ingest(ctx, zipBytes)
//	matches, _ := client.Recognize(ctx, photo, 5)
//	page, _ := client.Products().List(ctx, 20, 0, "chair")
package photomatch
