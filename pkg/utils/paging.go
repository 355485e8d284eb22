package utils

import "community-moderation/pkg/constants"

// ClampPaging bounds user-supplied paging values.
func ClampPaging(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = constants.DefaultPageLimit
	}
	if limit > constants.MaxPageLimit {
		limit = constants.MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
