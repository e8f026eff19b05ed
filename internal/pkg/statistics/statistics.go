package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/crisispulse/CrisisPulse/app/models"
	"github.com/crisispulse/CrisisPulse/internal/pkg/cache"
	"github.com/crisispulse/CrisisPulse/internal/pkg/database"
)

const (
	CacheKeyReportsTotal     = "statistics:reports:total"
	CacheKeyReportsDaily     = "statistics:reports:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyReportsConfirmed = "statistics:reports:confirmed"
	CacheKeyUsers            = "statistics:users:total"
	CacheExpiration          = 30 * time.Minute
)

// StatisticsData holds the aggregate platform counters.
type StatisticsData struct {
	TodayReports     int `json:"today_reports"`
	TotalReports     int `json:"total_reports"`
	ConfirmedReports int `json:"confirmed_reports"`
	TotalUsers       int `json:"total_users"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached counters are stale.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the update interval elapsed.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all counters and stores them in the cache.
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalReports int64
	if err := db.Model(&models.Report{}).Count(&totalReports).Error; err != nil {
		log.Printf("Error counting total reports: %v", err)
		return err
	}

	var todayReports int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Report{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayReports).Error; err != nil {
		log.Printf("Error counting today's reports: %v", err)
		return err
	}

	var confirmedReports int64
	if err := db.Model(&models.Report{}).Where("confirmed_by_id IS NOT NULL").Count(&confirmedReports).Error; err != nil {
		log.Printf("Error counting confirmed reports: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyReportsTotal, strconv.FormatInt(totalReports, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total reports: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyReportsDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayReports, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's reports: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyReportsConfirmed, strconv.FormatInt(confirmedReports, 10), CacheExpiration); err != nil {
		log.Printf("Error caching confirmed reports: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	return nil
}

// GetStatistics returns the current counters, from cache where possible.
func GetStatistics() StatisticsData {
	today := time.Now().Format("2006-01-02")
	return StatisticsData{
		TotalReports:     getCachedCount(CacheKeyReportsTotal, countTotalReports),
		TodayReports:     getCachedCount(fmt.Sprintf(CacheKeyReportsDaily, today), countTodayReports),
		ConfirmedReports: getCachedCount(CacheKeyReportsConfirmed, countConfirmedReports),
		TotalUsers:       getCachedCount(CacheKeyUsers, countTotalUsers),
	}
}

// getCachedCount reads a counter from the cache, falling back to the database
// and repopulating the cache on a miss.
func getCachedCount(key string, compute func() (int64, error)) int {
	val, err := cache.Get(key)
	if err == nil {
		count, perr := strconv.ParseInt(val, 10, 64)
		if perr == nil {
			return int(count)
		}
	}

	count, err := compute()
	if err != nil {
		log.Printf("Error computing statistic %s: %v", key, err)
		return 0
	}
	if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
		log.Printf("Error caching statistic %s: %v", key, err)
	}
	return int(count)
}

func countTotalReports() (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.Report{}).Count(&count).Error
	return count, err
}

func countTodayReports() (int64, error) {
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	var count int64
	err := database.GetDB().Model(&models.Report{}).
		Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).
		Count(&count).Error
	return count, err
}

func countConfirmedReports() (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.Report{}).
		Where("confirmed_by_id IS NOT NULL").
		Count(&count).Error
	return count, err
}

func countTotalUsers() (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.User{}).Count(&count).Error
	return count, err
}
