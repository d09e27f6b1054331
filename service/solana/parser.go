package solana

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// systemTransfer is a decoded System Program Transfer instruction.
type systemTransfer struct {
	from     solana.PublicKey
	to       solana.PublicKey
	lamports uint64
}

// toRawTransaction maps a signature and its full transaction onto the ledger model.
// A native transfer into account becomes the inbound message, a memo becomes its
// text body, and every native transfer out of account counts as an outbound message.
// Failed transactions and nil results carry no inbound message.
func toRawTransaction(account solana.PublicKey, sig *rpc.TransactionSignature, result *rpc.GetTransactionResult) (ledger.RawTransaction, error) {
	tx := ledger.RawTransaction{
		Hash: sig.Signature.String(),
		LT:   strconv.FormatUint(sig.Slot, 10),
	}
	if sig.BlockTime != nil {
		tx.Now = int64(*sig.BlockTime)
	}

	// Failed transactions moved no funds.
	if sig.Err != nil || result == nil {
		return tx, nil
	}
	if result.Meta != nil {
		tx.TotalFees = strconv.FormatUint(result.Meta.Fee, 10)
		if result.Meta.Err != nil {
			return tx, nil
		}
	}

	decoded, err := result.Transaction.GetTransaction()
	if err != nil {
		return ledger.RawTransaction{}, fmt.Errorf("failed to decode transaction %s: %w", tx.Hash, err)
	}

	var (
		inbound *systemTransfer
		memo    string
		hasMemo bool
	)
	accountKeys := decoded.Message.AccountKeys
	for _, instruction := range decoded.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		switch {
		case programID.Equals(SystemProgramID):
			transfer, err := parseSystemTransfer(instruction, accountKeys)
			if err != nil {
				continue
			}
			if transfer.from.Equals(account) {
				tx.OutMessagesCount++
				continue
			}
			if transfer.to.Equals(account) && inbound == nil {
				inbound = transfer
			}
		case programID.Equals(MemoProgramIDSPL) || programID.Equals(MemoProgramIDLegacy):
			memo = string(instruction.Data)
			hasMemo = true
		}
	}

	if inbound == nil {
		return tx, nil
	}
	body := ledger.Body{Format: ledger.BodyEmpty}
	if hasMemo && memo != "" {
		body = ledger.Body{Format: ledger.BodyText, Data: []byte(memo)}
	}
	tx.InMessage = &ledger.Message{
		Type:        ledger.MessageInternal,
		Source:      inbound.from.String(),
		Destination: inbound.to.String(),
		Value:       strconv.FormatUint(inbound.lamports, 10),
		Body:        body,
	}
	return tx, nil
}

// parseSystemTransfer decodes a System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (*systemTransfer, error) {
	// System Transfer instruction format:
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)
	if len(instruction.Data) < 12 {
		return nil, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return nil, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	// System Transfer accounts: [from, to]
	if len(instruction.Accounts) < 2 {
		return nil, fmt.Errorf("transfer missing accounts")
	}
	fromIdx, toIdx := int(instruction.Accounts[0]), int(instruction.Accounts[1])
	if fromIdx >= len(accountKeys) || toIdx >= len(accountKeys) {
		return nil, fmt.Errorf("account index out of bounds")
	}

	return &systemTransfer{
		from:     accountKeys[fromIdx],
		to:       accountKeys[toIdx],
		lamports: binary.LittleEndian.Uint64(instruction.Data[4:12]),
	}, nil
}
