package nodeconfig

import (
	"strconv"
	"time"
)

// DefaultSocketHost is the host side of the bridge the nodes are attached
// to, where benchmark generators usually listen.
const DefaultSocketHost = "10.0.0.1"

// SourceFormat selects how a TCP source frames incoming tuples
type SourceFormat struct {
	name string
	// bytes carrying the buffer size, NES framing only
	sizeBytes int
}

var (
	// FormatCSV - newline separated CSV tuples
	FormatCSV = SourceFormat{name: "CSV"}
)

// FormatNES returns the binary format whose buffers are prefixed with a
// size field of sizeBytes bytes.
func FormatNES(sizeBytes int) SourceFormat {
	return SourceFormat{name: "NES", sizeBytes: sizeBytes}
}

// String returns the format name as the node expects it
func (f SourceFormat) String() string {
	if f.name == "" {
		return FormatCSV.name
	}
	return f.name
}

// TCPSource describes a socket source. Zero fields fall back to defaults:
// PhysicalSourceName to "<logical>_phy", SocketHost to DefaultSocketHost,
// FlushInterval to 100ms and Format to CSV.
type TCPSource struct {
	LogicalSourceName  string
	PhysicalSourceName string
	SocketHost         string
	SocketPort         uint16
	FlushInterval      time.Duration
	Format             SourceFormat
}

// PhysicalSource converts the description into a renderable source block
func (t TCPSource) PhysicalSource() PhysicalSource {
	physical := t.PhysicalSourceName
	if physical == "" {
		physical = t.LogicalSourceName + "_phy"
	}
	host := t.SocketHost
	if host == "" {
		host = DefaultSocketHost
	}
	flush := t.FlushInterval
	if flush == 0 {
		flush = 100 * time.Millisecond
	}

	items := []ConfigItem{
		{Key: "socketHost", Value: host},
		{Key: "socketPort", Value: strconv.Itoa(int(t.SocketPort))},
		{Key: "socketDomain", Value: "AF_INET"},
		{Key: "socketType", Value: "SOCK_STREAM"},
		{Key: "flushIntervalMS", Value: strconv.FormatInt(flush.Milliseconds(), 10)},
	}

	switch t.Format.String() {
	case "NES":
		items = append(items,
			ConfigItem{Key: "inputFormat", Value: "NES"},
			ConfigItem{Key: "decideMessageSize", Value: "BUFFER_SIZE_FROM_SOCKET"},
			ConfigItem{Key: "bytesUsedForSocketBufferSizeTransfer", Value: strconv.Itoa(t.Format.sizeBytes)},
		)
	default:
		items = append(items,
			ConfigItem{Key: "inputFormat", Value: "CSV"},
			ConfigItem{Key: "decideMessageSize", Value: "TUPLE_SEPARATOR"},
		)
	}

	return PhysicalSource{
		Type:         "TCP_SOURCE",
		LogicalName:  t.LogicalSourceName,
		PhysicalName: physical,
		Config:       items,
	}
}

// QueryProcessing tunes a worker's query engine. Nil fields are omitted.
type QueryProcessing struct {
	NumberOfWorkerThreads    *int
	TotalNumberOfBuffers     *int
	NumberOfSourceBuffers    *int
	NumberOfBuffersPerThread *int
	BufferSize               *int
}

// ConfigItems returns the set fields as extra document entries
func (q QueryProcessing) ConfigItems() []ConfigItem {
	var items []ConfigItem
	add := func(key string, v *int) {
		if v != nil {
			items = append(items, ConfigItem{Key: key, Value: strconv.Itoa(*v)})
		}
	}
	add("numWorkerThreads", q.NumberOfWorkerThreads)
	add("bufferSizeInBytes", q.BufferSize)
	add("numberOfBuffersPerWorker", q.NumberOfBuffersPerThread)
	add("numberOfBuffersInGlobalBufferManager", q.TotalNumberOfBuffers)
	add("numberOfBuffersInSourceLocalBufferPool", q.NumberOfSourceBuffers)
	return items
}
