package feeds

const FeedModeHistory = "history"

// FeedQuery carries the caller-facing feed parameters. Parsing and
// validation happen at the HTTP layer; the ranker consumes them as given.
type FeedQuery struct {
	MaxResults               int64
	SinceID                  string
	UntilID                  string
	Mode                     string
	HasRelationshipExpansion bool
	UserFields               []string
}
