package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentProgressKey returns the cache key for a student's saved exam progress
func (r *CacheKeyStruct) StudentProgressKey(userID string) string {
	return fmt.Sprintf("student:%s:exam_progress", userID)
}

// StudentSubmittedKey returns the key of a student's submission guard
func (r *CacheKeyStruct) StudentSubmittedKey(userID string) string {
	return fmt.Sprintf("student:%s:exam_submitted", userID)
}

// ExamDefinitionKey returns the cache key for an exam's full definition
func (r *CacheKeyStruct) ExamDefinitionKey(examName string) string {
	return fmt.Sprintf("exam:%s:definition", examName)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examName string) string {
	return fmt.Sprintf("exam:%s:monitor", examName)
}

// WSConnectLimitKey returns the rate limiter bucket for websocket connects
func (r *CacheKeyStruct) WSConnectLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:ws:%s", subject)
}

var CacheKey = NewCacheKeyStruct()
