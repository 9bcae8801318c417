package domain

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var metadataJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Metadata is the per-transaction bag of provider correlation ids and
// payloads. Keys it does not know are kept in Extra and survive a round trip.
type Metadata struct {
	PaymentMethod       string          `json:"payment_method,omitempty"`
	Phone               string          `json:"phone,omitempty"`
	PTN                 string          `json:"ptn,omitempty"`
	TRID                string          `json:"trid,omitempty"`
	OrderID             string          `json:"order_id,omitempty"`
	OrderTransactionID  string          `json:"order_transaction_id,omitempty"`
	PaymentURL          string          `json:"payment_url,omitempty"`
	IssuerTransactionID string          `json:"issuer_transaction_id,omitempty"`
	WebhookData         json.RawMessage `json:"webhook_data,omitempty"`
	Verification        json.RawMessage `json:"verification,omitempty"`
	Error               string          `json:"error,omitempty"`
	FailureKind         string          `json:"failure_kind,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// metadataFields has Metadata's layout without its JSON methods.
type metadataFields Metadata

var knownMetadataKeys = []string{
	"payment_method", "phone", "ptn", "trid", "order_id", "order_transaction_id",
	"payment_url", "issuer_transaction_id", "webhook_data", "verification", "error", "failure_kind",
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	known, err := metadataJSON.Marshal(metadataFields(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(m.Extra)+len(knownMetadataKeys))
	for k, v := range m.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := metadataJSON.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return metadataJSON.Marshal(merged)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var fields metadataFields
	if err := metadataJSON.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := metadataJSON.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownMetadataKeys {
		delete(all, k)
	}
	fields.Extra = nil
	if len(all) > 0 {
		fields.Extra = all
	}
	*m = Metadata(fields)
	return nil
}

// ParseMetadata decodes a stored JSONB document. Empty input yields an empty bag.
func ParseMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	if len(raw) == 0 {
		return m, nil
	}
	err := m.UnmarshalJSON(raw)
	return m, err
}

// Merge overwrites top-level keys with the non-empty keys of patch. It
// mirrors the storage-side `metadata || patch` update.
func (m *Metadata) Merge(patch Metadata) {
	setString(&m.PaymentMethod, patch.PaymentMethod)
	setString(&m.Phone, patch.Phone)
	setString(&m.PTN, patch.PTN)
	setString(&m.TRID, patch.TRID)
	setString(&m.OrderID, patch.OrderID)
	setString(&m.OrderTransactionID, patch.OrderTransactionID)
	setString(&m.PaymentURL, patch.PaymentURL)
	setString(&m.IssuerTransactionID, patch.IssuerTransactionID)
	setString(&m.Error, patch.Error)
	setString(&m.FailureKind, patch.FailureKind)
	if len(patch.WebhookData) > 0 {
		m.WebhookData = patch.WebhookData
	}
	if len(patch.Verification) > 0 {
		m.Verification = patch.Verification
	}
	if len(patch.Extra) > 0 && m.Extra == nil {
		m.Extra = make(map[string]json.RawMessage, len(patch.Extra))
	}
	for k, v := range patch.Extra {
		m.Extra[k] = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// CorrelationIDs returns every identifier a provider notification may use
// to refer to this transaction.
func (m Metadata) CorrelationIDs() []string {
	var ids []string
	for _, id := range []string{m.PTN, m.TRID, m.OrderID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
