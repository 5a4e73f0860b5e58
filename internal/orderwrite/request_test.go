package orderwrite

import (
	"encoding/json"
	"errors"
	"testing"

	"pricewaiter-bridge/internal/model"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Amount
		wantErr bool
	}{
		{name: "string", input: `{"total":"26.50"}`, want: Amount{Cents: 2650, Set: true}},
		{name: "number", input: `{"total":26.5}`, want: Amount{Cents: 2650, Set: true}},
		{name: "zero string", input: `{"total":"0.00"}`, want: Amount{Cents: 0, Set: true}},
		{name: "absent", input: `{}`, want: Amount{}},
		{name: "null", input: `{"total":null}`, want: Amount{}},
		{name: "garbage", input: `{"total":"abc"}`, wantErr: true},
		{name: "overflowing string", input: `{"total":"1e30"}`, wantErr: true},
		{name: "overflowing number", input: `{"total":1e17}`, wantErr: true},
		{name: "hex float", input: `{"total":"0x1p4"}`, wantErr: true},
		{name: "negative", input: `{"total":"-5.00"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Total Amount `json:"total"`
			}
			err := json.Unmarshal([]byte(tt.input), &body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && body.Total != tt.want {
				t.Errorf("Total = %+v, want %+v", body.Total, tt.want)
			}
		})
	}
}

func TestAmount_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}{A: Amount{Cents: 150, Set: true}})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":"1.50","b":null}` {
		t.Errorf("Marshal() = %s", b)
	}
}

func TestRequest_Validate(t *testing.T) {
	item := LineItemRequest{ProductID: 42, Quantity: 1}

	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{name: "valid", req: Request{LineItems: []LineItemRequest{item}}, ok: true},
		{name: "no items", req: Request{}},
		{name: "zero quantity", req: Request{LineItems: []LineItemRequest{{ProductID: 42}}}},
		{name: "no product and no total", req: Request{LineItems: []LineItemRequest{{Quantity: 1}}}},
		{
			name: "custom line with total",
			req:  Request{LineItems: []LineItemRequest{{Quantity: 1, Name: "Fee", Total: Amount{Cents: 100, Set: true}}}},
			ok:   true,
		},
		{name: "unknown status", req: Request{Status: "shipped", LineItems: []LineItemRequest{item}}},
		{name: "known status", req: Request{Status: "on-hold", LineItems: []LineItemRequest{item}}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, model.ErrInvalidRequest) {
				t.Errorf("Validate() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestRequest_Meta(t *testing.T) {
	r := Request{MetaData: []MetaDataRequest{
		{Key: model.MetaPricewaiterID, Value: "PW-1"},
		{Key: model.MetaPricewaiterID, Value: "PW-2"},
	}}
	if got := r.Meta(model.MetaPricewaiterID); got != "PW-1" {
		t.Errorf("Meta() = %q, want first value", got)
	}
	if got := r.Meta("missing"); got != "" {
		t.Errorf("Meta(missing) = %q", got)
	}
}
