package domain

import (
	"context"
	"errors"
)

type Service interface {
	RenderInvoicePDF(ctx context.Context, orderID string) (*Document, error)
}

// Document is a rendered invoice ready to be streamed to the client.
type Document struct {
	Number   string
	FileName string
	Content  []byte
}

var (
	ErrOrderNotInvoiceable = errors.New("order_not_invoiceable")
	ErrRenderFailed        = errors.New("invoice_render_failed")
)
