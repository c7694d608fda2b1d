package processor

// Fixed reply texts. Formatted replies live next to their handler.
const (
	replyHelp = "TextChain Commands:\n" +
		"JOIN - Create wallet\n" +
		"BALANCE - Check balance\n" +
		"REDEEM <code> - Use voucher\n" +
		"DEPOSIT - Get address\n" +
		"SEND 10 USDC TO +91...\n" +
		"SAVE <name> <phone>\n" +
		"CONTACTS - List saved\n" +
		"CHAIN <polygon|base>\n" +
		"HELP - This message"

	replyWelcome     = "Welcome to TextChain!\n\nReply HELP for commands."
	replyTryLater    = "Error. Try later."
	replyDBOffline   = "DB offline. Try later."
	replyNoWallet    = "No wallet. Reply JOIN first."
	replyWelcomeBack = "Welcome back!\n\nReply BALANCE or DEPOSIT"

	replyWalletCreateFailed = "Error creating wallet."
	replyWalletSaveFailed   = "Error saving wallet."

	replyBalanceOffline = "Balance: $0.00\nDB offline."
	replyWalletRead     = "Error reading wallet."
	replyWalletLoad     = "Error loading wallet."
	replyNoFunds        = "Balance: $0.00\n\nReply DEPOSIT to fund wallet."

	replyPinUsage   = "Reply: PIN <4-6 digits>\nExample: PIN 1234"
	replyPinInvalid = "PIN must be 4-6 digits.\nExample: PIN 1234"
	replyPinSet     = "PIN set!"

	replyDepositOffline = "DB offline. Reply JOIN first."

	replyNoHistory = "No transactions yet.\nReply REDEEM <code> to add funds."

	replyVoucherOffline       = "Voucher system offline."
	replyDepositSystemOffline = "Deposit system offline."
	replyVoucherInvalid       = "Invalid voucher code."
	replyVoucherUsed          = "Voucher already used."
	replyVoucherExpired       = "Voucher has expired."

	replyAddressBookOffline = "Address book offline."
	replyContactSaveFailed  = "Error saving contact."
	replyContactsLoadFailed = "Error loading contacts."
	replyNoContacts         = "No contacts yet.\n\nSAVE <name> <phone>"
)
