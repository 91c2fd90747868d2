package snapengine

import "errors"

var (
	// ErrStaleRace is the §7 StaleRace kind: a split record referenced a
	// realm already advanced past the new realm's creation point by
	// another MDS's concurrent split. The affected inode is skipped
	// silently; this is never returned to HandleSnap's caller.
	ErrStaleRace = errors.New("snapengine: stale split race")

	// ErrMissingSession is the §7 MissingSession kind: a snap message
	// named an MDS id the engine has no session for. The message is
	// dropped and logged.
	ErrMissingSession = errors.New("snapengine: missing mds session")
)
