package mobilemoney

import (
	"errors"
	"fmt"
	"strconv"

	"vcard-gateway/internal/core/ports"
)

// errorBody is the aggregator's error envelope.
type errorBody struct {
	RespCode int    `json:"respCode"`
	DevMsg   string `json:"devMsg"`
}

type respCode struct {
	message     string
	unavailable bool
}

// respCodes maps aggregator response codes to payer-facing messages. Codes
// flagged unavailable mean the aggregator could not give a verdict.
var respCodes = map[int]respCode{
	703202: {message: "You declined the transaction. Try again if you want to continue."},
	703108: {message: "Insufficient balance on your Orange Money account."},
	703201: {message: "The transaction was not confirmed in time. Please try again."},
	703000: {message: "The Orange Money transaction failed. Please try again."},
	704005: {message: "The MTN Mobile Money transaction failed. Please try again."},
	4000:   {message: "Could not reach the payment service. Please try again.", unavailable: true},
	50001:  {message: "The payment service is temporarily unavailable. Please try again later.", unavailable: true},
	50002:  {message: "The payment service is under maintenance. Please try again later.", unavailable: true},
	40001:  {message: "Technical error. Please contact support."},
	40010:  {message: "The phone number provided is invalid."},
	40030:  {message: "Insufficient balance on your Mobile Money account."},
	40031:  {message: "The amount exceeds the limit allowed for this transaction."},
	40020:  {message: "The transaction is still being processed. Please wait.", unavailable: true},
	40021:  {message: "This transaction has already been processed."},
	40040:  {message: "The selected payment service is not available."},
	40301:  {message: "The payment request expired. Please start again."},
	40302:  {message: "The payment service is temporarily unavailable. Please try again in a few minutes.", unavailable: true},
	40303:  {message: "Invalid amount for this payment service."},
	40304:  {message: "The payment service is not available for this number."},
	40305:  {message: "Transaction limit reached. Please try again later."},
}

// ErrorMessage returns the payer-facing text for an aggregator code.
func ErrorMessage(code int) string {
	if rc, ok := respCodes[code]; ok {
		return rc.message
	}
	return fmt.Sprintf("A payment error occurred (code %d).", code)
}

// classify turns a non-2xx response into a ProviderError. 5xx and codes
// without a verdict are Unavailable; other 4xx answers are Rejected.
func classify(status int, body errorBody) *ports.ProviderError {
	var code string
	if body.RespCode != 0 {
		code = strconv.Itoa(body.RespCode)
	}
	rc, known := respCodes[body.RespCode]
	if status >= 500 || (known && rc.unavailable) {
		pe := ports.NewUnavailable(providerName, fmt.Errorf("http %d: %s", status, body.DevMsg))
		pe.Code = code
		pe.Message = ErrorMessage(body.RespCode)
		return pe
	}
	if body.RespCode == 0 {
		pe := ports.NewRejected(providerName, "", fmt.Sprintf("The payment request was refused (HTTP %d).", status))
		pe.Err = fmt.Errorf("http %d", status)
		return pe
	}
	pe := ports.NewRejected(providerName, code, ErrorMessage(body.RespCode))
	if body.DevMsg != "" {
		pe.Err = errors.New(body.DevMsg)
	}
	return pe
}
