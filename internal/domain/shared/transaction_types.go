package shared

// TransactionType tags the kind of value movement a ledger transaction records
type TransactionType string

const (
	TransactionTypeInternalTransfer TransactionType = "INTERNAL_TRANSFER"
	TransactionTypeATMWithdrawal    TransactionType = "ATM_WITHDRAWAL"
	TransactionTypeATMDeposit       TransactionType = "ATM_DEPOSIT"
	TransactionTypeExternalDeposit  TransactionType = "EXTERNAL_DEPOSIT"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeInternalTransfer, TransactionTypeATMWithdrawal,
		TransactionTypeATMDeposit, TransactionTypeExternalDeposit:
		return true
	}
	return false
}

// TransactionStatus defines ledger transaction states. Only committed
// transactions are ever persisted, so COMPLETED is the only stored value today.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
)

// Channel records how a movement reached the ledger
type Channel string

const (
	ChannelUPI     Channel = "UPI"
	ChannelAccount Channel = "ACCOUNT"
	ChannelMobile  Channel = "MOBILE"
	ChannelATM     Channel = "ATM"
	ChannelGateway Channel = "GATEWAY"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
