package solana

import (
	"context"
	"strconv"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// MockRPCClient is an in-memory RPCClient for tests.
// It's behavior-focused: set what it should return, then inspect what was sent.
// All methods are safe for concurrent use.
type MockRPCClient struct {
	mu sync.Mutex

	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	BlockHeight          uint64
	BlockhashErr         error
	BlockHeightErr       error

	// SendErr is returned by every send. OnSend, if set, runs after a
	// successful send so tests can apply the transaction's effect to state.
	SendErr error
	OnSend  func(tx *solana.Transaction)

	// Statuses is returned one entry per poll; the last entry repeats.
	// A nil entry means the network has not seen the transaction yet.
	// With no entries every transaction is reported finalized.
	Statuses  []*rpc.SignatureStatusesResult
	StatusErr error

	accounts      map[solana.PublicKey]*rpc.Account
	balances      map[solana.PublicKey]uint64
	tokenAccounts map[solana.PublicKey][]solana.PublicKey
	tokenBalances map[solana.PublicKey]*rpc.UiTokenAmount

	AccountErr       error
	BalanceErr       error
	TokenAccountsErr error
	TokenBalanceErr  error

	sent        []*solana.Transaction
	sendOpts    []rpc.TransactionOpts
	statusPolls int
	blockhashes []rpc.CommitmentType
}

var _ RPCClient = (*MockRPCClient)(nil)

// NewMockRPCClient returns a mock with a fixed blockhash and an empty ledger.
func NewMockRPCClient() *MockRPCClient {
	var blockhash solana.Hash
	copy(blockhash[:], "arcadewallet-test-blockhash-0001")
	return &MockRPCClient{
		Blockhash:            blockhash,
		LastValidBlockHeight: 1000,
		BlockHeight:          900,
		accounts:             make(map[solana.PublicKey]*rpc.Account),
		balances:             make(map[solana.PublicKey]uint64),
		tokenAccounts:        make(map[solana.PublicKey][]solana.PublicKey),
		tokenBalances:        make(map[solana.PublicKey]*rpc.UiTokenAmount),
	}
}

// SetAccountData stores an account owned by owner with the given data.
func (m *MockRPCClient) SetAccountData(address, owner solana.PublicKey, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[address] = &rpc.Account{
		Lamports: 1_000_000,
		Owner:    owner,
		Data:     rpc.DataBytesOrJSONFromBytes(append([]byte(nil), data...)),
	}
}

// SetBalance sets the native balance of address in lamports.
func (m *MockRPCClient) SetBalance(address solana.PublicKey, lamports uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = lamports
}

// AddTokenAccount registers a token account held by owner with a balance.
func (m *MockRPCClient) AddTokenAccount(owner, tokenAccount solana.PublicKey, raw uint64, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenAccounts[owner] = append(m.tokenAccounts[owner], tokenAccount)
	m.tokenBalances[tokenAccount] = &rpc.UiTokenAmount{
		Amount:   strconv.FormatUint(raw, 10),
		Decimals: decimals,
	}
}

// Sent returns the transactions that were sent successfully, in order.
func (m *MockRPCClient) Sent() []*solana.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*solana.Transaction(nil), m.sent...)
}

// SendOpts returns the options passed to each successful send.
func (m *MockRPCClient) SendOpts() []rpc.TransactionOpts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rpc.TransactionOpts(nil), m.sendOpts...)
}

// StatusPolls returns how many times signature statuses were requested.
func (m *MockRPCClient) StatusPolls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusPolls
}

// BlockhashFetches returns how many times the latest blockhash was requested.
func (m *MockRPCClient) BlockhashFetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blockhashes)
}

// BlockhashCommitments returns the commitment of every blockhash fetch, in order.
func (m *MockRPCClient) BlockhashCommitments() []rpc.CommitmentType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rpc.CommitmentType(nil), m.blockhashes...)
}

func (m *MockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockhashes = append(m.blockhashes, commitment)
	if m.BlockhashErr != nil {
		return nil, m.BlockhashErr
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            m.Blockhash,
			LastValidBlockHeight: m.LastValidBlockHeight,
		},
	}, nil
}

func (m *MockRPCClient) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BlockHeightErr != nil {
		return 0, m.BlockHeightErr
	}
	return m.BlockHeight, nil
}

func (m *MockRPCClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	m.mu.Lock()
	if m.SendErr != nil {
		err := m.SendErr
		m.mu.Unlock()
		return solana.Signature{}, err
	}
	m.sent = append(m.sent, tx)
	m.sendOpts = append(m.sendOpts, opts)
	onSend := m.OnSend
	m.mu.Unlock()

	if onSend != nil {
		onSend(tx)
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, nil
	}
	return tx.Signatures[0], nil
}

func (m *MockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	poll := m.statusPolls
	m.statusPolls++
	if m.StatusErr != nil {
		return nil, m.StatusErr
	}

	out := &rpc.GetSignatureStatusesResult{Value: make([]*rpc.SignatureStatusesResult, len(signatures))}
	for i := range signatures {
		if len(m.Statuses) == 0 {
			out.Value[i] = &rpc.SignatureStatusesResult{
				Slot:               1,
				ConfirmationStatus: rpc.ConfirmationStatusFinalized,
			}
			continue
		}
		idx := poll
		if idx >= len(m.Statuses) {
			idx = len(m.Statuses) - 1
		}
		out.Value[i] = m.Statuses[idx]
	}
	return out, nil
}

func (m *MockRPCClient) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AccountErr != nil {
		return nil, m.AccountErr
	}
	acct, ok := m.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acct}, nil
}

func (m *MockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BalanceErr != nil {
		return nil, m.BalanceErr
	}
	return &rpc.GetBalanceResult{Value: m.balances[account]}, nil
}

func (m *MockRPCClient) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TokenAccountsErr != nil {
		return nil, m.TokenAccountsErr
	}
	out := &rpc.GetTokenAccountsResult{}
	for _, pk := range m.tokenAccounts[owner] {
		out.Value = append(out.Value, &rpc.TokenAccount{Pubkey: pk})
	}
	return out, nil
}

func (m *MockRPCClient) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TokenBalanceErr != nil {
		return nil, m.TokenBalanceErr
	}
	bal, ok := m.tokenBalances[account]
	if !ok {
		return &rpc.GetTokenAccountBalanceResult{}, nil
	}
	return &rpc.GetTokenAccountBalanceResult{Value: bal}, nil
}
