// Package pkg provides the core libraries for poissonfields collages.
//
// # Overview
//
// Poissonfields searches the web for transparent images of a random noun,
// keeps the ones whose four corner pixels are fully transparent, and
// scatters a few of them across a fixed-size canvas without overlap, all
// sharing one rotation. The pkg directory is organized into four areas:
//
//  1. Acquisition: [terms], [integrations] (Bing, static lists, the shared
//     HTTP client), [asset] (decode and transparency check) and [candidate]
//     (bounded concurrent probing)
//  2. Collage: [layout] (transform sequencer and rejection-sampling
//     placement) and [compose] (background plus affine draws, PNG encode)
//  3. Delivery: [publish] (directory and webhook publishers)
//  4. Support: [pipeline] (orchestration), [cache], [httputil], [errors],
//     [observability], [buildinfo]
//
// # Architecture
//
//	noun ("teapot")
//	     ↓
//	search "transparent teapot"      [integrations/bing]
//	     ↓
//	sample ≤ 10 URLs, fetch + classify  [candidate], [asset]
//	     ↓
//	pick 1-3, shared rotation, sizes  [layout.NewSequence]
//	     ↓
//	place without overlap            [layout.Engine]
//	     ↓
//	draw + encode PNG                [compose]
//	     ↓
//	publish with caption             [publish]
//
// Every random choice is drawn from one seeded generator, so a seed and the
// same search results reproduce a collage exactly.
//
// # Quick Start
//
//	provider, _ := bing.NewProvider(os.Getenv("BING_KEY"), nil, nil)
//	client := integrations.NewClient(nil, nil)
//	runner := pipeline.NewRunner(provider, client, nil)
//
//	res, err := runner.Execute(ctx, pipeline.Options{Seed: 7})
//	if err != nil {
//	    return err
//	}
//	return runner.Publish(ctx, publish.NewFile("collages"), res, res.Term)
package pkg
