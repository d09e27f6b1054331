package ton

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"

	"github.com/brojonat/tonwatch/service/ledger"
)

// toncenter msg_data variants
const (
	msgDataRaw           = "msg.dataRaw"
	msgDataText          = "msg.dataText"
	msgDataDecryptedText = "msg.dataDecryptedText"
	msgDataEncryptedText = "msg.dataEncryptedText"
)

type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Code   int             `json:"code"`
}

type apiTransactionID struct {
	LT   string `json:"lt"`
	Hash string `json:"hash"`
}

type apiMsgData struct {
	Type string `json:"@type"`
	Body string `json:"body"` // base64 BOC for msg.dataRaw
	Text string `json:"text"` // base64 UTF-8 for msg.dataText
}

type apiMessage struct {
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Value       string     `json:"value"`
	MsgData     apiMsgData `json:"msg_data"`
}

type apiTransaction struct {
	UTime         int64            `json:"utime"`
	TransactionID apiTransactionID `json:"transaction_id"`
	Fee           string           `json:"fee"`
	InMsg         *apiMessage      `json:"in_msg"`
	OutMsgs       []apiMessage     `json:"out_msgs"`
}

func (t *apiTransaction) toDomain(logger *slog.Logger) ledger.RawTransaction {
	tx := ledger.RawTransaction{
		Hash:             t.TransactionID.Hash,
		LT:               t.TransactionID.LT,
		Now:              t.UTime,
		TotalFees:        t.Fee,
		OutMessagesCount: len(t.OutMsgs),
	}
	if t.InMsg != nil {
		msg := &ledger.Message{
			Type:        ledger.MessageInternal,
			Source:      t.InMsg.Source,
			Destination: t.InMsg.Destination,
			Value:       t.InMsg.Value,
			Body:        t.InMsg.MsgData.toBody(logger, tx.Hash),
		}
		// toncenter reports external messages with an empty source.
		if msg.Source == "" {
			msg.Type = ledger.MessageExternalIn
		}
		tx.InMessage = msg
	}
	return tx
}

func (d apiMsgData) toBody(logger *slog.Logger, hash string) ledger.Body {
	switch d.Type {
	case msgDataText, msgDataDecryptedText:
		if d.Text == "" {
			return ledger.Body{Format: ledger.BodyEmpty}
		}
		data, err := base64.StdEncoding.DecodeString(d.Text)
		if err != nil {
			logger.Debug("undecodable message text", "hash", hash, "error", err)
			return ledger.Body{Format: ledger.BodyEmpty}
		}
		return ledger.Body{Format: ledger.BodyText, Data: data}
	case msgDataRaw:
		if d.Body == "" {
			return ledger.Body{Format: ledger.BodyEmpty}
		}
		data, err := base64.StdEncoding.DecodeString(d.Body)
		if err != nil {
			logger.Debug("undecodable message body", "hash", hash, "error", err)
			return ledger.Body{Format: ledger.BodyEmpty}
		}
		return ledger.Body{Format: ledger.BodyCell, Data: data}
	case msgDataEncryptedText:
		return ledger.Body{Format: ledger.BodyEncrypted}
	default:
		return ledger.Body{Format: ledger.BodyEmpty}
	}
}
