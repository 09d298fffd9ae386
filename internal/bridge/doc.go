// Package bridge connects an incremental document engine to a remote
// resource fetched by byte ranges.
//
// A Bridge holds at most one live session. Setting a resource discovers its
// size with a HEAD request, opens an engine endpoint for that length and
// answers every range the engine asks for with one GET. Results that arrive
// after the resource changed, or after Close, are counted and dropped; they
// never touch the newer session.
//
// # Lifecycle
//
//	Idle ──SetResource──▶ Discovering ──size──▶ Transporting ──resolve──▶ Resolved
//	  ▲                       │                      │
//	  └──────── error ────────┴──────── error ───────┘
//
// # Usage
//
//	b, err := bridge.New(ctx, bridge.Options{
//	    Fetcher:    http.NewClient(http.DefaultOptions()),
//	    Engine:     pdfengine.New(pdfengine.Options{}),
//	    OnResolved: func(info bridge.Info) { ... },
//	    OnError:    func(err error) { ... },
//	})
//	b.SetResource("https://example.com/report.pdf")
//	...
//	b.Close()
//	b.Wait()
package bridge
