package entity

// Known field names as they appear on the wire
const (
	FieldName          = "name"
	FieldCreatedUTC    = "created_utc"
	FieldAuthor        = "author"
	FieldSubreddit     = "subreddit"
	FieldBody          = "body"
	FieldBannedBy      = "banned_by"
	FieldRemovalReason = "removal_reason"
	FieldReportReason  = "report_reason"
	FieldNumReports    = "num_reports"
	FieldModReports    = "mod_reports"
	FieldUserReports   = "user_reports"
)

// ModerationFields are consulted on both snapshots by the removal check, in order
var ModerationFields = []string{
	FieldBannedBy,
	FieldModReports,
	FieldUserReports,
	FieldNumReports,
	FieldRemovalReason,
	FieldReportReason,
}
