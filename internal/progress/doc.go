// Package progress tracks and reports download progress of a range session.
//
// A [Tracker] folds the byte counts of concurrently completing range fetches
// into one (loaded, total) pair and pushes every change to its subscribers
// synchronously. A [Reporter] subscribes to a Tracker and prints
// human-readable progress information.
//
// # Usage
//
//	tracker := progress.NewTracker()
//	tracker.Reset(totalLength)
//
//	state, cancel := tracker.Subscribe(func(s progress.State) {
//	    fmt.Println(s.Loaded, s.Total)
//	})
//	defer cancel()
//
//	tracker.Notify(len(chunk), totalLength)
//
// # Output Format
//
//	[rangeview] Loading: https://example.com/paper.pdf
//	[rangeview] Downloaded bytes : 524288 / 1000000 (52.43 %) | Ranges: 8 | Speed: 1.2 MiB/s | ETA: 1s
package progress
