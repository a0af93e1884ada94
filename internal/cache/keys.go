package cache

import "strconv"

// Key shapes, kept in one place so writers and invalidators agree.

// RefreshTokenKey holds the single active refresh token of a user.
func RefreshTokenKey(userID uint64) string {
	return "refresh_token:" + strconv.FormatUint(userID, 10)
}

// TodoListPrefix covers every cached listing variant of a user.
func TodoListPrefix(userID uint64) string {
	return "todos:" + strconv.FormatUint(userID, 10) + ":"
}

// TodoListKey is one listing variant; query is the serialized normalized query.
func TodoListKey(userID uint64, query string) string {
	return TodoListPrefix(userID) + query
}

// TodoStatsKey holds a user's todo statistics.
func TodoStatsKey(userID uint64) string {
	return "todos:stats:" + strconv.FormatUint(userID, 10)
}
