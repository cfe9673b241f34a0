// Package integrations provides the HTTP plumbing shared by image search
// providers and the asset fetcher.
//
// # Overview
//
// Provider subpackages translate a query into a list of image URLs:
//
//   - [bing]: Bing Image Search v7
//   - [static]: a fixed list of URLs (flags or a text file)
//
// # Shared Infrastructure
//
// [Client] wraps an [http.Client] with retry on transient failures, default
// headers, observability hooks and a byte cache. It also implements the
// candidate pool's fetcher through [Client.FetchBytes], which adds an SSRF
// guard, a response size limit and content sniffing on top of the plain GET.
//
//	client := integrations.NewClient(c, nil)
//	data, err := client.FetchBytes(ctx, "https://example.com/teapot.png")
//
// # Adding a New Provider
//
//  1. Create a subpackage: pkg/integrations/<provider>/
//  2. Define response structs matching the API schema
//  3. Implement Name() and Search(ctx, query) on a type embedding [*Client]
//  4. Wire it into the CLI provider switch
//
// [bing]: github.com/matzehuels/poissonfields/pkg/integrations/bing
// [static]: github.com/matzehuels/poissonfields/pkg/integrations/static
package integrations
