package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationExtensionNavigate           = "/tandem.v1.Extension/Navigate"
	OperationExtensionUpdateCards        = "/tandem.v1.Extension/UpdateCards"
	OperationExtensionToggleReveal       = "/tandem.v1.Extension/ToggleReveal"
	OperationExtensionReportProfilePhoto = "/tandem.v1.Extension/ReportProfilePhoto"
	OperationExtensionToggleBlocklist    = "/tandem.v1.Extension/ToggleBlocklist"
	OperationExtensionListNotifications  = "/tandem.v1.Extension/ListNotifications"
	OperationExtensionDiagnostics        = "/tandem.v1.Extension/Diagnostics"
)

// RegisterExtensionHTTPServer mounts the extension routes on s.
func RegisterExtensionHTTPServer(s *http.Server, srv *ExtensionService) {
	r := s.Route("/")
	r.POST("/v1/navigate", handle(OperationExtensionNavigate, true, srv.Navigate))
	r.POST("/v1/listings/cards", handle(OperationExtensionUpdateCards, true, srv.UpdateCards))
	r.POST("/v1/listings/reveal", handle(OperationExtensionToggleReveal, false, srv.ToggleReveal))
	r.POST("/v1/profile/photo", handle(OperationExtensionReportProfilePhoto, true, srv.ReportProfilePhoto))
	r.POST("/v1/profile/blocklist", handle(OperationExtensionToggleBlocklist, true, srv.ToggleBlocklist))
	r.GET("/v1/notifications", handle(OperationExtensionListNotifications, false, srv.ListNotifications))
	r.GET("/v1/diagnostics", handle(OperationExtensionDiagnostics, false, srv.Diagnostics))
}

// handle adapts a typed service method to an HTTP handler running the
// server middleware chain.
func handle[Req, Reply any](operation string, bind bool, fn func(context.Context, *Req) (*Reply, error)) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in Req
		if bind && ctx.Request().ContentLength != 0 {
			if err := ctx.Bind(&in); err != nil {
				return err
			}
		}
		http.SetOperation(ctx, operation)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return fn(ctx, req.(*Req))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*Reply)
		return ctx.Result(200, reply)
	}
}
