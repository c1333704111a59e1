// Package fetcher is the transport boundary of the link-chain walker.
//
// An HTTPFetcher performs one GET per identifier, follows redirects and
// reports the fully resolved final URL. Bodies are decoded to UTF-8 using
// the charset announced by the server or sniffed from the document.
// Any transport failure, timeout or non-2xx status is returned as a
// fetch-kind *errors.Error carrying the identifier and status code.
//
// Example usage:
//
//	f := fetcher.New(15*time.Second, "MyArchiver/1.0", log)
//	page, err := f.Fetch(ctx, "https://example.com/book/chapter-1.html")
//	if err != nil {
//	    // errors.Is(err, errors.ErrFetch) holds
//	}
//	fmt.Println(page.FinalURL, len(page.Body))
package fetcher
