package common

// GetAccountFromArgs extracts the account name from tool request arguments,
// defaulting to "default". Accounts distinguish multiple stored Google
// tokens on the same machine.
func GetAccountFromArgs(args map[string]interface{}) string {
	if accountVal, ok := args["account"].(string); ok && accountVal != "" {
		return accountVal
	}
	return "default"
}
