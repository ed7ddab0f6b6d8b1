package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	addressdomain "github.com/smallbiznis/storefront/internal/address/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/invoice/domain"
	"github.com/smallbiznis/storefront/internal/invoice/format"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Store      *config.StoreConfigHolder
	OrderSvc   orderdomain.Service
	AddressSvc addressdomain.Service
	PDF        pdf.Provider
}

type Service struct {
	log        *zap.Logger
	store      *config.StoreConfigHolder
	orderSvc   orderdomain.Service
	addressSvc addressdomain.Service
	pdf        pdf.Provider
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("invoice.service"),
		store:      p.Store,
		orderSvc:   p.OrderSvc,
		addressSvc: p.AddressSvc,
		pdf:        p.PDF,
	}
}

func (s *Service) RenderInvoicePDF(ctx context.Context, orderID string) (*domain.Document, error) {
	src, err := s.orderSvc.InvoiceSource(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order := src.Order
	if order.Status == orderdomain.StatusCancelled || order.Status == orderdomain.StatusFailed {
		return nil, domain.ErrOrderNotInvoiceable
	}

	settings := s.store.Get()
	template := settings.InvoiceNumberTemplate
	if strings.TrimSpace(template) == "" {
		template = format.DefaultInvoiceNumberTemplate
	}
	number, err := format.FormatInvoiceNumber(template, order.CreatedAt, src.Sequence, order.ID.String())
	if err != nil {
		s.log.Warn("invalid invoice number template, using default", zap.String("template", template), zap.Error(err))
		number, err = format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, order.CreatedAt, src.Sequence, order.ID.String())
		if err != nil {
			return nil, err
		}
	}

	shipTo, err := s.loadAddress(ctx, order.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	billTo, err := s.loadAddress(ctx, order.BillingAddressID)
	if err != nil {
		return nil, err
	}
	if billTo == nil {
		billTo = shipTo
	}

	data := buildInvoiceData(settings, src, number)
	data.BillToName, data.BillToAddress = addressLines(billTo)
	data.ShipToName, data.ShipToAddress = addressLines(shipTo)
	if option, ok := settings.ShippingOption(order.ShippingMethod); ok {
		data.Shipping = strings.TrimSpace(option.Courier + " " + option.Service)
	} else {
		data.Shipping = order.ShippingMethod
	}
	if order.Courier != nil && order.TrackingCode != nil {
		data.Shipping += fmt.Sprintf(" (%s %s)", *order.Courier, *order.TrackingCode)
	}

	reader, err := s.pdf.GenerateInvoice(ctx, data)
	if err != nil {
		s.log.Error("failed to render invoice", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	return &domain.Document{
		Number:   number,
		FileName: number + ".pdf",
		Content:  content,
	}, nil
}

func (s *Service) loadAddress(ctx context.Context, id *snowflake.ID) (*addressdomain.Response, error) {
	if id == nil {
		return nil, nil
	}
	addr, err := s.addressSvc.Get(ctx, id.String())
	if errors.Is(err, addressdomain.ErrNotFound) {
		return nil, nil
	}
	return addr, err
}

func buildInvoiceData(settings config.StoreSettings, src *orderdomain.InvoiceSource, number string) pdf.InvoiceData {
	order := src.Order
	currency := order.Currency
	data := pdf.InvoiceData{
		StoreName:     settings.Name,
		StoreAddress:  settings.Address,
		StoreEmail:    settings.Email,
		StorePhone:    settings.Phone,
		InvoiceNumber: number,
		IssueDate:     order.CreatedAt.UTC().Format("02 Jan 2006"),
		OrderID:       order.ID.String(),
		Status:        string(order.Status),
		Subtotal:      format.FormatMoney(currency, order.Subtotal),
		ShippingFee:   format.FormatMoney(currency, order.ShippingFee),
		GrandTotal:    format.FormatMoney(currency, order.TotalAmount),
	}
	if order.DiscountAmount.IsPositive() {
		data.Discount = format.FormatMoney(currency, order.DiscountAmount)
		if order.CouponCode != nil {
			data.CouponCode = *order.CouponCode
		}
	}
	if order.TaxAmount.IsPositive() || order.TaxRate.IsPositive() {
		label := "Tax"
		if order.TaxLabel != nil {
			label = *order.TaxLabel
		}
		data.TaxLabel = fmt.Sprintf("%s (%s%%)", label, order.TaxRate.String())
		data.TaxAmount = format.FormatMoney(currency, order.TaxAmount)
	}

	for _, item := range src.Items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Name,
			SKU:         item.SKU,
			Qty:         item.Quantity,
			UnitPrice:   format.FormatMoney(currency, item.UnitPrice),
			Amount:      format.FormatMoney(currency, item.LineTotal),
		})
	}
	return data
}

func addressLines(addr *addressdomain.Response) (string, []string) {
	if addr == nil {
		return "-", nil
	}
	lines := []string{addr.Line1}
	if addr.Line2 != nil && *addr.Line2 != "" {
		lines = append(lines, *addr.Line2)
	}
	city := addr.City
	if addr.Region != nil && *addr.Region != "" {
		city += ", " + *addr.Region
	}
	lines = append(lines, city+" "+addr.PostalCode, addr.Country)
	if addr.Phone != nil && *addr.Phone != "" {
		lines = append(lines, *addr.Phone)
	}
	return addr.FullName, lines
}
