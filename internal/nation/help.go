package nation

// HelpText returns the command reference shown to players by the host's
// command front-end.
func HelpText() string {
	return `=== Nation Commands ===
/nation create <name> - Create a new nation
/nation join <name> - Join an existing nation
/nation leave - Leave your current nation (non-leaders)
/nation disband - Disband your nation (leaders only)
/nation info - Show your nation information
/nation promote <player> - Promote a member (leaders only)
/nation demote <player> - Demote a member (leaders only)
/nation kick <player> - Kick a member (leaders only)
/nation transfer <player> - Transfer leadership (leaders only)
/nation spawnunit <type> - Spawn a unit (soldier/archer/knight/mage)
/nation listunits - List all your nation's units
/nation help - Show this help message
Roles: Leader > Commander > Citizen
`
}
