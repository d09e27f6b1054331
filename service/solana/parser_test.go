package solana

import (
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSignature = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

// Helper function to create a TransactionResultEnvelope from a Transaction.
// Since TransactionResultEnvelope has unexported fields, we use JSON marshaling.
func makeTransactionEnvelope(tx *solana.Transaction) (*rpc.TransactionResultEnvelope, error) {
	txJSON, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	var temp struct {
		Transaction json.RawMessage `json:"transaction"`
	}
	temp.Transaction = txJSON

	envelopeJSON, err := json.Marshal(temp)
	if err != nil {
		return nil, err
	}

	var result rpc.GetTransactionResult
	if err := json.Unmarshal(envelopeJSON, &result); err != nil {
		return nil, err
	}

	return result.Transaction, nil
}

func transferData(lamports uint64) []byte {
	// [0..4]  = instruction type (u32, 2 = Transfer)
	// [4..12] = lamports (u64)
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], SystemProgramTransferInstruction)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return data
}

func testSig(blockTime int64, failed bool) *rpc.TransactionSignature {
	bt := solana.UnixTimeSeconds(blockTime)
	sig := &rpc.TransactionSignature{
		Signature: solana.MustSignatureFromBase58(testSignature),
		Slot:      250000000,
		BlockTime: &bt,
	}
	if failed {
		sig.Err = map[string]interface{}{"InstructionError": []interface{}{0, "InsufficientFunds"}}
	}
	return sig
}

func makeResult(t *testing.T, tx *solana.Transaction, fee uint64) *rpc.GetTransactionResult {
	t.Helper()
	envelope, err := makeTransactionEnvelope(tx)
	require.NoError(t, err)
	return &rpc.GetTransactionResult{
		Transaction: envelope,
		Meta:        &rpc.TransactionMeta{Fee: fee},
	}
}

func TestToRawTransaction_InboundWithMemo(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	sender := solana.NewWallet().PublicKey()

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{sender, account, SystemProgramID, MemoProgramIDSPL},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: transferData(1_000_000_000)},
				{ProgramIDIndex: 3, Accounts: []uint16{}, Data: []byte("order-42")},
			},
		},
	}

	raw, err := toRawTransaction(account, testSig(1700000000, false), makeResult(t, tx, 5000))
	require.NoError(t, err)

	assert.Equal(t, testSignature, raw.Hash)
	assert.Equal(t, "250000000", raw.LT)
	assert.Equal(t, int64(1700000000), raw.Now)
	assert.Equal(t, "5000", raw.TotalFees)
	assert.Equal(t, 0, raw.OutMessagesCount)
	require.NotNil(t, raw.InMessage)
	assert.Equal(t, ledger.MessageInternal, raw.InMessage.Type)
	assert.Equal(t, sender.String(), raw.InMessage.Source)
	assert.Equal(t, account.String(), raw.InMessage.Destination)
	assert.Equal(t, "1000000000", raw.InMessage.Value)
	assert.Equal(t, ledger.Body{Format: ledger.BodyText, Data: []byte("order-42")}, raw.InMessage.Body)
}

func TestToRawTransaction_InboundWithoutMemo(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	sender := solana.NewWallet().PublicKey()

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{sender, account, SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: transferData(42)},
			},
		},
	}

	raw, err := toRawTransaction(account, testSig(1700000000, false), makeResult(t, tx, 5000))
	require.NoError(t, err)
	require.NotNil(t, raw.InMessage)
	assert.Equal(t, ledger.BodyEmpty, raw.InMessage.Body.Format)
}

func TestToRawTransaction_OutboundCounted(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	sender := solana.NewWallet().PublicKey()

	// Funds arrive and are sent straight back in the same transaction.
	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{sender, account, SystemProgramID, MemoProgramIDLegacy},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: transferData(100)},
				{ProgramIDIndex: 2, Accounts: []uint16{1, 0}, Data: transferData(100)},
				{ProgramIDIndex: 3, Accounts: []uint16{}, Data: []byte("refund")},
			},
		},
	}

	raw, err := toRawTransaction(account, testSig(1700000000, false), makeResult(t, tx, 5000))
	require.NoError(t, err)
	assert.Equal(t, 1, raw.OutMessagesCount)
	require.NotNil(t, raw.InMessage)
}

func TestToRawTransaction_UnrelatedTransfer(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{a, b, account, SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 3, Accounts: []uint16{0, 1}, Data: transferData(100)},
			},
		},
	}

	raw, err := toRawTransaction(account, testSig(1700000000, false), makeResult(t, tx, 5000))
	require.NoError(t, err)
	assert.Nil(t, raw.InMessage)
	assert.Equal(t, 0, raw.OutMessagesCount)
}

func TestToRawTransaction_Failed(t *testing.T) {
	account := solana.NewWallet().PublicKey()

	raw, err := toRawTransaction(account, testSig(time.Now().Unix(), true), nil)
	require.NoError(t, err)
	assert.Equal(t, testSignature, raw.Hash)
	assert.Nil(t, raw.InMessage)
}

func TestToRawTransaction_MetaError(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	sender := solana.NewWallet().PublicKey()
	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys: []solana.PublicKey{sender, account, SystemProgramID},
			Instructions: []solana.CompiledInstruction{
				{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: transferData(100)},
			},
		},
	}
	result := makeResult(t, tx, 5000)
	result.Meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}

	raw, err := toRawTransaction(account, testSig(1700000000, false), result)
	require.NoError(t, err)
	assert.Nil(t, raw.InMessage)
	assert.Equal(t, "5000", raw.TotalFees)
}

func TestParseSystemTransfer(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	keys := []solana.PublicKey{from, to}

	transfer, err := parseSystemTransfer(solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: transferData(77)}, keys)
	require.NoError(t, err)
	assert.Equal(t, from, transfer.from)
	assert.Equal(t, to, transfer.to)
	assert.Equal(t, uint64(77), transfer.lamports)

	_, err = parseSystemTransfer(solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: []byte{1, 2}}, keys)
	assert.Error(t, err)

	wrongType := transferData(77)
	binary.LittleEndian.PutUint32(wrongType[0:4], 0) // CreateAccount
	_, err = parseSystemTransfer(solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: wrongType}, keys)
	assert.Error(t, err)

	_, err = parseSystemTransfer(solana.CompiledInstruction{Accounts: []uint16{0, 5}, Data: transferData(77)}, keys)
	assert.Error(t, err)
}
