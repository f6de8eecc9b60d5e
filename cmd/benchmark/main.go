// Benchmark tool for testing the configurator against labeled
// configuration data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/configs.csv -url http://localhost:8080
//
// This tool:
//   1. Reads candidate configurations with expected verdicts
//   2. Sends each to the compatibility endpoint
//   3. Compares the verdict (valid/invalid) with the expected label
//   4. Calculates precision, recall, F1-score, and a confusion matrix
//
// CSV format: one row per candidate, header required:
//   configuration,expected
//   cpu=101;motherboard=201,valid
//   cpu=101;motherboard=202,invalid
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Candidate is one labeled row from the benchmark dataset.
type Candidate struct {
	Configuration map[string]int64
	ExpectValid   bool
	Raw           string
}

// CheckRequest is the compatibility API request format.
type CheckRequest struct {
	Configuration map[string]int64 `json:"configuration"`
}

// CheckResponse is the compatibility API response format.
type CheckResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Metrics tracks benchmark results. "Positive" is an invalid verdict:
// the benchmark measures how well the rule set catches bad builds.
type Metrics struct {
	TruePositives  int64 // invalid build flagged invalid
	FalsePositives int64 // valid build flagged invalid
	TrueNegatives  int64 // valid build passed
	FalseNegatives int64 // invalid build passed

	TotalProcessed int64
	TotalInvalid   int64
	TotalValid     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled configuration CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Configurator base URL")
	configuratorID := flag.Int64("configurator", 1, "Configurator ID to check against")
	limit := flag.Int("limit", 10000, "Maximum candidates to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each candidate result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/configs.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("=================================================================")
	fmt.Println("          CONFIGURATOR BENCHMARK - Compatibility Checks")
	fmt.Println("=================================================================")
	fmt.Printf("\nCSV File:      %s\n", *csvPath)
	fmt.Printf("Base URL:      %s\n", *baseURL)
	fmt.Printf("Configurator:  %d\n", *configuratorID)
	fmt.Printf("Workers:       %d\n", *workers)
	fmt.Printf("Limit:         %d\n", *limit)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: service not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the service is running:")
		fmt.Println("  go run cmd/configurator/main.go")
		os.Exit(1)
	}
	fmt.Println("service is healthy")

	fmt.Printf("\nReading candidates from %s...\n", *csvPath)
	candidates, err := readCandidatesCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d candidates\n", len(candidates))

	invalidCount := 0
	for _, c := range candidates {
		if !c.ExpectValid {
			invalidCount++
		}
	}
	fmt.Printf("  - Expected invalid: %d (%.2f%%)\n", invalidCount, 100*float64(invalidCount)/float64(len(candidates)))
	fmt.Printf("  - Expected valid:   %d (%.2f%%)\n", len(candidates)-invalidCount, 100*float64(len(candidates)-invalidCount)/float64(len(candidates)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(candidates, *baseURL, *configuratorID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// parseConfiguration parses "cpu=101;motherboard=202" into a slot map.
func parseConfiguration(raw string) (map[string]int64, error) {
	cfg := make(map[string]int64)
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad product id in %q: %w", pair, err)
		}
		cfg[strings.TrimSpace(key)] = id
	}
	return cfg, nil
}

func readCandidatesCSV(path string, limit int) ([]Candidate, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	cfgCol, ok := colIndex["configuration"]
	if !ok {
		return nil, fmt.Errorf("missing 'configuration' column")
	}
	expCol, ok := colIndex["expected"]
	if !ok {
		return nil, fmt.Errorf("missing 'expected' column")
	}

	var candidates []Candidate
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		cfg, err := parseConfiguration(record[cfgCol])
		if err != nil {
			continue
		}

		candidates = append(candidates, Candidate{
			Configuration: cfg,
			ExpectValid:   strings.EqualFold(strings.TrimSpace(record[expCol]), "valid"),
			Raw:           record[cfgCol],
		})

		if limit > 0 && len(candidates) >= limit {
			break
		}
	}

	return candidates, nil
}

func runBenchmark(candidates []Candidate, baseURL string, configuratorID int64, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Candidate, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for c := range work {
				start := time.Now()
				result, err := checkCandidate(client, baseURL, configuratorID, c)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", c.Raw, err)
					}
					continue
				}

				if c.ExpectValid {
					atomic.AddInt64(&metrics.TotalValid, 1)
				} else {
					atomic.AddInt64(&metrics.TotalInvalid, 1)
				}

				predicted := !result.Valid
				actual := !c.ExpectValid

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else {
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "ok  "
					if predicted != actual {
						status = "MISS"
					}
					fmt.Printf("%s %-40s | expected valid: %-5v | got valid: %-5v | errors: %d | %dms\n",
						status, c.Raw, c.ExpectValid, result.Valid, len(result.Errors), elapsed)
				}
			}
		}()
	}

	for _, c := range candidates {
		work <- c
	}
	close(work)

	wg.Wait()

	return metrics
}

func checkCandidate(client *http.Client, baseURL string, configuratorID int64, c Candidate) (*CheckResponse, error) {
	body, err := json.Marshal(CheckRequest{Configuration: c.Configuration})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/configurators/%d/compatibility", baseURL, configuratorID)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result CheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n=================================================================")
	fmt.Println("                       BENCHMARK RESULTS")
	fmt.Println("=================================================================")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:   %d\n", m.TotalProcessed)
	fmt.Printf("   Expected Invalid:  %d\n", m.TotalInvalid)
	fmt.Printf("   Expected Valid:    %d\n", m.TotalValid)
	fmt.Printf("   Errors:            %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX (positive = flagged invalid)\n")
	fmt.Println("                           Predicted")
	fmt.Println("                     Invalid      Valid")
	fmt.Printf("   Actual Invalid  %8d   %8d   (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("   Actual Valid    %8d   %8d   (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nRULE SET METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged builds, how many were actually bad)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of bad builds, how many were caught)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct verdicts)\n", accuracy)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f checks/sec\n", rps)
	}

	if m.FalseNegatives > 0 {
		fmt.Printf("\nWARNING: %d bad builds passed the rule set - review rule coverage\n", m.FalseNegatives)
	}

	fmt.Println()
}
