package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/booknest/booknest-api/internal/database"
	"github.com/booknest/booknest-api/internal/purchase"
	"github.com/booknest/booknest-api/internal/types"
)

const (
	numBuyers     = 20
	numWorkers    = 4
	serverAddress = "http://localhost:8080"
	seedBalance   = 5000.0
)

var bookSeeds = []struct {
	title    string
	author   string
	category string
	price    float64
}{
	{"The Pragmatic Seller", "A. Merchant", "business", 499},
	{"Distributed Ledgers", "K. Chainsmith", "technology", 799},
	{"A Brief History of Ink", "P. Scrivener", "history", 299},
	{"Thinking in Margins", "R. Notemaker", "self-help", 199},
	{"The Quiet Algorithm", "S. Vector", "computer-science", 649},
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]
	p95 = rs.durations[int(float64(len(rs.durations))*0.95)]
	p99 = rs.durations[int(float64(len(rs.durations))*0.99)]
	return
}

type simulationClient struct {
	httpClient *http.Client
	db         *gorm.DB
	stats      map[string]*routeStats
	statsMu    sync.Mutex
}

func newSimulationClient() (*simulationClient, error) {
	db, err := database.NewDatabase(getDBPath())
	if err != nil {
		return nil, err
	}

	return &simulationClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		db:         db,
		stats: map[string]*routeStats{
			"register":        {name: "POST /auth/register"},
			"create_book":     {name: "POST /books"},
			"buy_with_wallet": {name: "POST /purchase/buy-with-wallet"},
			"get_purchase":    {name: "GET /purchase/:purchaseId"},
			"resend_pdf":      {name: "POST /purchase/resend-pdf/:purchaseId"},
		},
	}, nil
}

func getDBPath() string {
	if path := os.Getenv("DB_PATH"); path != "" {
		return path
	}
	return "booknest.db"
}

func (sc *simulationClient) record(route string, d time.Duration, failed bool) {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	rs := sc.stats[route]
	rs.addDuration(d)
	if failed {
		rs.failures++
	}
}

// register creates an account and returns its token and user id
func (sc *simulationClient) register(name, email string) (token, userID string, err error) {
	body, _ := json.Marshal(map[string]string{
		"name":     name,
		"email":    email,
		"password": "simulation-pass",
	})

	start := time.Now()
	resp, err := sc.httpClient.Post(serverAddress+"/auth/register", "application/json", bytes.NewReader(body))
	sc.record("register", time.Since(start), err != nil)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("register failed (%d): %s", resp.StatusCode, b)
	}

	var result struct {
		Token string `json:"token"`
		User  struct {
			UserID string `json:"user_id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	return result.Token, result.User.UserID, nil
}

// createBook lists a book as the given seller and returns the book id
func (sc *simulationClient) createBook(token string, seed int) (string, float64, error) {
	book := bookSeeds[seed%len(bookSeeds)]
	body, _ := json.Marshal(map[string]interface{}{
		"title":       fmt.Sprintf("%s #%d", book.title, seed),
		"author":      book.author,
		"description": "Simulation listing",
		"price":       book.price,
		"category":    book.category,
	})

	req, _ := http.NewRequest(http.MethodPost, serverAddress+"/books", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := sc.httpClient.Do(req)
	sc.record("create_book", time.Since(start), err != nil)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("create book failed (%d): %s", resp.StatusCode, b)
	}

	var created types.Book
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", 0, err
	}
	return created.BookID, created.Price, nil
}

// topUpWallet credits the buyer directly in the database. Wallet funding is
// out of band for the API, so the simulation seeds it the way an operator
// would.
func (sc *simulationClient) topUpWallet(userID string, amount float64) error {
	return sc.db.Model(&types.User{}).
		Where("user_id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount)).Error
}

// buyWithWallet purchases the book and returns the purchase id
func (sc *simulationClient) buyWithWallet(token, bookID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"bookId": bookID})

	req, _ := http.NewRequest(http.MethodPost, serverAddress+"/purchase/buy-with-wallet", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := sc.httpClient.Do(req)
	sc.record("buy_with_wallet", time.Since(start), err != nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("wallet purchase failed (%d): %s", resp.StatusCode, b)
	}

	var result struct {
		Purchase purchase.Purchase `json:"purchase"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Purchase.PurchaseID, nil
}

// getPurchase fetches the purchase back as the buyer
func (sc *simulationClient) getPurchase(token, purchaseID string) (*purchase.Purchase, error) {
	req, _ := http.NewRequest(http.MethodGet, serverAddress+"/purchase/"+purchaseID, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := sc.httpClient.Do(req)
	sc.record("get_purchase", time.Since(start), err != nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get purchase failed (%d): %s", resp.StatusCode, b)
	}

	var p purchase.Purchase
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// resendPDF retries delivery for the purchase
func (sc *simulationClient) resendPDF(token, purchaseID string) error {
	req, _ := http.NewRequest(http.MethodPost, serverAddress+"/purchase/resend-pdf/"+purchaseID, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := sc.httpClient.Do(req)
	sc.record("resend_pdf", time.Since(start), err != nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend failed (%d): %s", resp.StatusCode, b)
	}
	return nil
}

// runBuyerFlow drives one buyer through the full wallet purchase path
func (sc *simulationClient) runBuyerFlow(workerID, n int) error {
	suffix := fmt.Sprintf("%d-%d-%d", workerID, n, time.Now().UnixNano())

	sellerToken, _, err := sc.register("Seller "+suffix, fmt.Sprintf("seller-%s@sim.booknest", suffix))
	if err != nil {
		return err
	}

	bookID, price, err := sc.createBook(sellerToken, n)
	if err != nil {
		return err
	}

	buyerToken, buyerID, err := sc.register("Buyer "+suffix, fmt.Sprintf("buyer-%s@sim.booknest", suffix))
	if err != nil {
		return err
	}

	if err := sc.topUpWallet(buyerID, seedBalance); err != nil {
		return err
	}

	purchaseID, err := sc.buyWithWallet(buyerToken, bookID)
	if err != nil {
		return err
	}

	p, err := sc.getPurchase(buyerToken, purchaseID)
	if err != nil {
		return err
	}

	log.Info().
		Int("worker", workerID).
		Str("purchase_id", p.PurchaseID).
		Str("status", p.Status).
		Float64("amount", price).
		Bool("pdf_delivered", p.PDFDelivered).
		Int("delivery_attempts", p.PDFDeliveryAttempts).
		Msg("completed buyer flow")

	// Occasionally exercise the resend path
	if rand.Intn(4) == 0 {
		if err := sc.resendPDF(buyerToken, purchaseID); err != nil {
			log.Warn().Err(err).Msg("resend failed")
		}
	}

	return nil
}

func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n=== API Performance Statistics ===")
	for _, rs := range sc.stats {
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("\n%s\n", rs.name)
		fmt.Printf("  calls: %d  failures: %d\n", rs.totalCalls, rs.failures)
		fmt.Printf("  min: %v  max: %v  mean: %v\n", min, max, mean)
		fmt.Printf("  median: %v  p95: %v  p99: %v\n", median, p95, p99)
	}
}

func main() {
	log.Info().
		Int("buyers", numBuyers).
		Int("workers", numWorkers).
		Msg("starting purchase flow simulation (wallet path; gateway checkout needs a browser)")

	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create simulation client")
	}

	jobs := make(chan int, numBuyers)
	var wg sync.WaitGroup

	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for n := range jobs {
				if err := simClient.runBuyerFlow(workerID, n); err != nil {
					log.Error().Err(err).Int("worker", workerID).Int("buyer", n).Msg("buyer flow failed")
				}
			}
		}(w)
	}

	for n := 0; n < numBuyers; n++ {
		jobs <- n
	}
	close(jobs)

	wg.Wait()
	simClient.printPerformanceStats()
}
