// Package view renders pages of a resolved document onto drawing surfaces.
//
// A render pass asks the document for one page, sizes the surface to the
// page's intrinsic dimensions and paints it. There is no scaling, no
// letterboxing and no de-duplication: two passes issued against the same
// surface may complete in either order.
//
// # Usage
//
//	host := view.NewHost(nil)
//	canvas := view.NewCanvas()
//
//	n, err := host.RenderCurrent(ctx, b, canvas)
//	if err != nil {
//	    var renderErr *view.RenderError
//	    if errors.As(err, &renderErr) { ... }
//	}
//	img := canvas.Image()
package view
