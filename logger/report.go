package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsFeed         int64
	errorsSubscription int64
	warnsFeed          int64
	warnsSubscription  int64
	barsRead           int64
	barsRejected       int64
	barsFiltered       int64
	bufferDrops        int64
	reconnects         int64
	channels           sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "subscription") {
		atomic.AddInt64(&warnsSubscription, 1)
	} else if strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsFeed, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "subscription") {
		atomic.AddInt64(&errorsSubscription, 1)
	} else if strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsFeed, 1)
	}
}

// IncrementBarRead counts one accepted bar of the given payload size for
// the named subscription.
func IncrementBarRead(subscription string, size int) {
	atomic.AddInt64(&barsRead, 1)
	recordChannel(subscription, size)
}

// IncrementBarRejected counts one nacked delivery (decode or validation
// failure).
func IncrementBarRejected() {
	atomic.AddInt64(&barsRejected, 1)
}

// IncrementBarFiltered counts one acked delivery dropped by the symbol
// filter.
func IncrementBarFiltered() {
	atomic.AddInt64(&barsFiltered, 1)
}

// IncrementBufferDrop counts one drop-oldest eviction.
func IncrementBufferDrop() {
	atomic.AddInt64(&bufferDrops, 1)
}

// IncrementReconnect counts one successful re-subscribe.
func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and feed statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_feed":         atomic.LoadInt64(&errorsFeed),
		"errors_subscription": atomic.LoadInt64(&errorsSubscription),
		"warns_feed":          atomic.LoadInt64(&warnsFeed),
		"warns_subscription":  atomic.LoadInt64(&warnsSubscription),
		"bars_read":           atomic.LoadInt64(&barsRead),
		"bars_rejected":       atomic.LoadInt64(&barsRejected),
		"bars_filtered":       atomic.LoadInt64(&barsFiltered),
		"buffer_drops":        atomic.LoadInt64(&bufferDrops),
		"reconnects":          atomic.LoadInt64(&reconnects),
		"goroutines":          runtime.NumGoroutine(),
		"cpu_percent":         cpuPct,
		"memory_mb":           int64(memStats.Used) / 1024 / 1024,
		"disk_mb":             int64(diskStats.Used) / 1024 / 1024,
		"channels":            channelData,
		"net_bytes_sent":      int64(bytesSent),
		"net_bytes_recv":      int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsSubscription"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_subscription"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsSubscription"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_subscription"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("BarsRead"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["bars_read"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("BarsRejected"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["bars_rejected"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("BarsFiltered"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["bars_filtered"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("BufferDrops"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["buffer_drops"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Reconnects"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["reconnects"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range channelData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("SubscriptionMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Subscription"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("SubscriptionBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Subscription"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
