package pesapal

import (
	"fmt"
	"net/url"
	"strings"
)

// IPN is an instant payment notification. Pesapal sends it as query parameters (GET) or a JSON body (POST).
type IPN struct {
	OrderTrackingID        string `json:"OrderTrackingId" form:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference" form:"OrderMerchantReference"`
	OrderNotificationType  string `json:"OrderNotificationType" form:"OrderNotificationType"`
}

func (n *IPN) Validate() error {
	if strings.TrimSpace(n.OrderTrackingID) == "" {
		return fmt.Errorf("pesapal: ipn without OrderTrackingId")
	}
	return nil
}

// IPNFromQuery reads an IPN from GET parameters.
func IPNFromQuery(q url.Values) *IPN {
	return &IPN{
		OrderTrackingID:        q.Get("OrderTrackingId"),
		OrderMerchantReference: q.Get("OrderMerchantReference"),
		OrderNotificationType:  q.Get("OrderNotificationType"),
	}
}

// IPNAck is the body Pesapal expects back; status 200 stops redelivery, 500 asks for it.
type IPNAck struct {
	OrderNotificationType  string `json:"orderNotificationType"`
	OrderTrackingID        string `json:"orderTrackingId"`
	OrderMerchantReference string `json:"orderMerchantReference"`
	Status                 int    `json:"status"`
}

func (n *IPN) Ack(status int) *IPNAck {
	return &IPNAck{
		OrderNotificationType:  n.OrderNotificationType,
		OrderTrackingID:        n.OrderTrackingID,
		OrderMerchantReference: n.OrderMerchantReference,
		Status:                 status,
	}
}
