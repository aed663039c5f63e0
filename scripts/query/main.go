package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// query inspects a running sensor (status mode, via the diagnostics API) or
// the flow_records table (direct mode, top talkers by volume).
func main() {
	mode := flag.String("mode", "status", "Query mode: 'status' for the sensor API, 'direct' to query ClickHouse directly.")
	apiAddr := flag.String("api", "http://localhost:8080", "Base URL of the sensor diagnostics API.")
	chAddr := flag.String("ch", "localhost:9000", "ClickHouse address for direct mode.")
	database := flag.String("db", "default", "ClickHouse database.")
	username := flag.String("user", "default", "ClickHouse username.")
	password := flag.String("password", "", "ClickHouse password.")
	limit := flag.Int("limit", 20, "Number of top talkers to show in direct mode.")

	defaultEnd := time.Now().UTC().Format(time.RFC3339)
	endTimeStr := flag.String("end", defaultEnd, "Only count flows started before this RFC3339 time.")

	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	switch *mode {
	case "status":
		queryStatus(*apiAddr)
	case "direct":
		queryTopTalkers(*chAddr, *database, *username, *password, *endTimeStr, *limit)
	default:
		log.Fatalf("Invalid mode: %s. Use 'status' or 'direct'.", *mode)
	}
}

func queryStatus(apiAddr string) {
	url := strings.TrimRight(apiAddr, "/") + "/api/v1/status"

	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, respBody, "", "  "); err != nil {
		log.Printf("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}

	log.Println("---")
	fmt.Println(prettyJSON.String())
}

func queryTopTalkers(addr, database, username, password, endTimeStr string, limit int) {
	endTime, err := time.Parse(time.RFC3339, endTimeStr)
	if err != nil {
		log.Fatalf("Invalid end time format: %v", err)
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		log.Fatalf("Error connecting to ClickHouse: %v", err)
	}
	defer conn.Close()

	log.Println("Successfully connected to ClickHouse.")

	query := `
		SELECT
			SrcIP,
			DstIP,
			DstPort,
			Protocol,
			SUM(FwdBytes + BwdBytes) AS TotalBytes,
			SUM(FwdPackets + BwdPackets) AS TotalPackets,
			COUNT(*) AS FlowCount
		FROM flow_records
		WHERE StartTime <= ?
		GROUP BY SrcIP, DstIP, DstPort, Protocol
		ORDER BY TotalBytes DESC
		LIMIT ?`

	rows, err := conn.Query(context.Background(), query, endTime, limit)
	if err != nil {
		log.Fatalf("Error executing query: %v", err)
	}
	defer rows.Close()

	log.Println("--- Top Talkers (Direct) ---")

	var foundResult bool
	for rows.Next() {
		foundResult = true
		var (
			srcIP, dstIP string
			dstPort      uint16
			protocol     uint8
			totalBytes   uint64
			totalPackets uint64
			flowCount    uint64
		)

		if err := rows.Scan(&srcIP, &dstIP, &dstPort, &protocol, &totalBytes, &totalPackets, &flowCount); err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}

		fmt.Printf("%s -> %s:%d (proto %d)\n", srcIP, dstIP, dstPort, protocol)
		fmt.Printf("  TotalBytes: %d\n", totalBytes)
		fmt.Printf("  TotalPackets: %d\n", totalPackets)
		fmt.Printf("  FlowCount: %d\n", flowCount)
		fmt.Println("---------------------")
	}

	if !foundResult {
		log.Println("No data found for the specified criteria.")
	}

	if err := rows.Err(); err != nil {
		log.Printf("An error occurred during row iteration: %v", err)
	}
}
