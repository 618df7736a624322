package logger

import (
	"context"
	"io"
	"log/slog"

	"github.com/phrazzld/connkeeper/internal/ciutil"
)

// CIHandler is a JSON slog.Handler that stamps every record with CI metadata,
// so database failures in pipeline runs can be traced to the job that hit them.
type CIHandler struct {
	handler slog.Handler
}

// NewCIHandler creates a CIHandler writing JSON to out.
func NewCIHandler(out io.Writer, opts *slog.HandlerOptions) *CIHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	base := slog.NewJSONHandler(out, opts)
	return &CIHandler{handler: base.WithAttrs(ciutil.Metadata())}
}

// Enabled implements the slog.Handler interface.
func (h *CIHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *CIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CIHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup implements the slog.Handler interface.
func (h *CIHandler) WithGroup(name string) slog.Handler {
	return &CIHandler{handler: h.handler.WithGroup(name)}
}

// Handle implements the slog.Handler interface.
func (h *CIHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.handler.Handle(ctx, record)
}
