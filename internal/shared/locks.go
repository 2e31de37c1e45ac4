package shared

import "fmt"

// InterestRecalcLockKey builds the redis key guarding the nightly interest
// recalculation batch. One run per calendar day.
func InterestRecalcLockKey(day string) string {
	return fmt.Sprintf("credit:interest:%s:lock", day)
}
