package messages

const (
	// ErrUserErrorProcessing is the generic response for an unexpected failure.
	ErrUserErrorProcessing = "An error occurred while processing your command. Please try again later."

	// ErrNotConfigured is sent when no staff role has been configured.
	ErrNotConfigured = "No staff role configured. Use `/setup staff_role` to set it."

	// ErrOfficerNotConfigured is sent when no officer role has been configured.
	ErrOfficerNotConfigured = "No officer role configured. Ask an administrator to set it up."

	// ErrNoPermission is sent when the caller fails the staff-role check.
	ErrNoPermission = "You don't have permission to use this command."

	// ErrNotTicketChannel is sent when the command runs outside a ticket channel.
	ErrNotTicketChannel = "This command can only be used in ticket channels."

	// ErrAlreadyClaimed is sent when the channel already has an open claim.
	ErrAlreadyClaimed = "This ticket has already been claimed."

	// ErrNotClaimed is sent when the channel has no open claim.
	ErrNotClaimed = "This ticket is not currently claimed."

	// ErrBotTarget is sent when a bot account is supplied as the ticket holder.
	ErrBotTarget = "You cannot claim a ticket for a bot."

	// ErrUnclaimDenied is sent when a non-claimer without channel management
	// rights tries to unclaim.
	ErrUnclaimDenied = "Only the ticket claimer or administrators can unclaim tickets."

	// ErrAdminOnly is sent when a non-administrator uses a setup command.
	ErrAdminOnly = "You must be an administrator to use this command."
)

const (
	// ClaimConfirm announces a successful claim. Arguments: claimer mention,
	// holder mention, timeout minutes.
	ClaimConfirm = "✅ %s has claimed this ticket for %s.\n\n⏰ Timeout will occur after **%d minutes** of inactivity from either party."

	// ReclaimConfirm announces a successful reclaim. Same arguments as ClaimConfirm.
	ReclaimConfirm = "✅ %s has reclaimed this ticket for %s.\n\n⏰ Timeout will occur after **%d minutes** of inactivity."

	// UnclaimConfirm announces a successful unclaim.
	UnclaimConfirm = "✅ Ticket unclaimed and permissions restored."

	// OfficerInvite announces an officer escalation. Arguments: officer role
	// mention, escalating user mention.
	OfficerInvite = "✅ Officers (%s) have been invited to help with this ticket!\n\U0001F3AF %s has been awarded **1 point** for escalating the ticket."

	// StaffTimeout announces a staff-side timeout. Argument: claimer mention.
	StaffTimeout = "⏰ **Staff Timeout:** %s did not respond within the timeout period.\nThis ticket is now **available for claiming again**."

	// HolderTimeout pings a silent ticket holder. Arguments: holder mention,
	// claimer mention.
	HolderTimeout = "\U0001F44B Hey %s, please continue the conversation about your ticket so we can help you as quickly as possible! Our staff member %s is ready to assist you."

	// HolderSet confirms the ticket holder change. Argument: holder mention.
	HolderSet = "✅ Ticket holder set to %s."

	// TestTimeoutSet confirms the one-shot test window. Argument: seconds.
	TestTimeoutSet = "⚡ Test mode activated. The next timeout check for this channel uses a **%d second** window."
)
