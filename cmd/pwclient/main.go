// pwclient is a CLI tool for exercising a running bridge by hand.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	pwclient ipn -bridge URL -api-key KEY [-product ID] [-qty N] [-price 9.99]
//	pwclient verify-stub [-port N] [-answer 1]
//	pwclient order -bridge URL -ck KEY -cs SECRET [-product ID] [-qty N] [-total 9.99] [-pw]
//	pwclient settings -bridge URL -token TOKEN [-api-key KEY] [-tracking ua]
//
// Examples:
//
//	pwclient verify-stub -port 9000 &
//	IPN_VERIFY_ENDPOINT=http://localhost:9000/order/verify bridge &
//	ID=$(pwclient ipn -bridge http://localhost:8080 -api-key KEY -q)
//	pwclient order -bridge http://localhost:8080 -ck ck_x -cs cs_x -pw -total 26.50
//	pwclient settings -bridge http://localhost:8080 -token secret -tracking ua
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

var client = &http.Client{Timeout: 90 * time.Second}

// Global flags (apply to all commands)
var (
	bridgeURL string
	quiet     bool
	noColor   bool
	verbose   bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "ipn":
		runIPN(args)
	case "verify-stub":
		runVerifyStub(args)
	case "order":
		runOrder(args)
	case "settings":
		runSettings(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `pwclient - PriceWaiter bridge test tool

Usage:
  pwclient <command> [options]

Commands:
  ipn          Post an IPN notification as PriceWaiter would
  verify-stub  Serve a fake PriceWaiter verification endpoint
  order        Create an order through the REST endpoint
  settings     Show or update the bridge settings

Examples:
  # Answer every verification with "1"
  pwclient verify-stub -port 9000

  # Send a notification and capture the order ID
  ID=$(pwclient ipn -bridge http://localhost:8080 -api-key KEY -q)

  # Create a PriceWaiter REST order with a captured total
  pwclient order -bridge http://localhost:8080 -ck ck_x -cs cs_x -pw -total 26.50

  # Enable universal analytics
  pwclient settings -bridge http://localhost:8080 -token secret -tracking ua

Run 'pwclient <command> -h' for command-specific options.
`)
}

func commonFlags(fs *flag.FlagSet) {
	fs.StringVar(&bridgeURL, "bridge", "http://localhost:8080", "Bridge base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the result")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

// =============================================================================
// IPN COMMAND
// =============================================================================

func runIPN(args []string) {
	fs := flag.NewFlagSet("ipn", flag.ExitOnError)
	commonFlags(fs)

	var apiKey, pwID, email, price, shipping, tax, postID string
	var qty int
	var test bool
	fs.StringVar(&apiKey, "api-key", "", "PriceWaiter API key (required)")
	fs.StringVar(&pwID, "id", "", "PriceWaiter order id (random if empty)")
	fs.StringVar(&postID, "product", "", "Host product id (metadata__wc_post_id)")
	fs.IntVar(&qty, "qty", 1, "Quantity")
	fs.StringVar(&price, "price", "10.00", "Unit price")
	fs.StringVar(&shipping, "shipping", "5.00", "Shipping amount")
	fs.StringVar(&tax, "tax", "0.00", "Tax amount")
	fs.StringVar(&email, "email", "buyer@example.com", "Buyer email")
	fs.BoolVar(&test, "test", false, "Mark the notification as a test order")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pwclient ipn -api-key KEY [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}
	if apiKey == "" {
		fs.Usage()
		os.Exit(1)
	}
	if pwID == "" {
		pwID = randomID()
	}

	total, err := ipnTotal(price, shipping, tax, qty)
	if err != nil {
		fatal("%v", err)
	}

	form := url.Values{
		"pricewaiter_id":            {pwID},
		"api_key":                   {apiKey},
		"product_name":              {"Test Product"},
		"product_sku":               {"TEST-SKU"},
		"quantity":                  {fmt.Sprint(qty)},
		"unit_price":                {price},
		"shipping":                  {shipping},
		"tax":                       {tax},
		"total":                     {total},
		"currency":                  {"USD"},
		"payment_method":            {"authorize_net"},
		"transaction_id":            {"txn-" + pwID},
		"shipping_method":           {"Ground"},
		"buyer_email":               {email},
		"buyer_billing_first_name":  {"Test"},
		"buyer_billing_last_name":   {"Buyer"},
		"buyer_billing_address":     {"1 Main St"},
		"buyer_billing_city":        {"Portland"},
		"buyer_billing_state":       {"OR"},
		"buyer_billing_zip":         {"97201"},
		"buyer_billing_country":     {"US"},
		"buyer_shipping_first_name": {"Test"},
		"buyer_shipping_last_name":  {"Buyer"},
		"buyer_shipping_address":    {"1 Main St"},
		"buyer_shipping_city":       {"Portland"},
		"buyer_shipping_state":      {"OR"},
		"buyer_shipping_zip":        {"97201"},
		"buyer_shipping_country":    {"US"},
	}
	if postID != "" {
		form.Set("metadata__wc_post_id", postID)
	}
	if test {
		form.Set("test", "1")
	}

	status, body, err := doForm("/wc-api/pricewaiter_ipn", form)
	if err != nil {
		fatal("IPN request failed: %v", err)
	}
	if status != http.StatusOK {
		fatal("IPN rejected: HTTP %d: %s", status, body)
	}

	if quiet {
		fmt.Println(pwID)
	} else {
		printSuccess("IPN accepted")
		fmt.Printf("  PriceWaiter ID: %s%s%s\n", colorCyan, pwID, colorReset)
		fmt.Printf("  Total: %s%s%s\n", colorGreen, total, colorReset)
	}
}

// ipnTotal is unit price times quantity plus shipping and tax.
func ipnTotal(price, shipping, tax string, qty int) (string, error) {
	var p, s, t float64
	for _, f := range []struct {
		name string
		raw  string
		dst  *float64
	}{{"price", price, &p}, {"shipping", shipping, &s}, {"tax", tax, &t}} {
		if _, err := fmt.Sscanf(f.raw, "%f", f.dst); err != nil {
			return "", fmt.Errorf("invalid -%s %q", f.name, f.raw)
		}
	}
	return fmt.Sprintf("%.2f", p*float64(qty)+s+t), nil
}

// =============================================================================
// VERIFY STUB COMMAND
// =============================================================================

func runVerifyStub(args []string) {
	fs := flag.NewFlagSet("verify-stub", flag.ExitOnError)
	var port int
	var answer string
	var delay time.Duration
	fs.IntVar(&port, "port", 9000, "Port to listen on")
	fs.StringVar(&answer, "answer", "1", "Body returned to every verification (1 = valid)")
	fs.DurationVar(&delay, "delay", 0, "Delay before answering")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /order/verify", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		printInfo("verify %s (api_key %s)", r.PostForm.Get("pricewaiter_id"), mask(r.PostForm.Get("api_key")))
		if delay > 0 {
			time.Sleep(delay)
		}
		fmt.Fprint(w, answer)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	printSuccess("Verification stub listening on http://%s/order/verify", addr)
	server := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 10 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fatal("verify stub: %v", err)
	}
}

// =============================================================================
// ORDER COMMAND
// =============================================================================

func runOrder(args []string) {
	fs := flag.NewFlagSet("order", flag.ExitOnError)
	commonFlags(fs)

	var productID int64
	var qty int
	var total, payment, pwID, ck, cs string
	var pw, paid bool
	fs.Int64Var(&productID, "product", 42, "Product id")
	fs.IntVar(&qty, "qty", 1, "Quantity")
	fs.StringVar(&total, "total", "", "Order total as captured by the caller")
	fs.StringVar(&payment, "payment", "bacs", "Payment method")
	fs.BoolVar(&pw, "pw", false, "Send as a PriceWaiter order (payment method pricewaiter)")
	fs.StringVar(&pwID, "id", "", "PriceWaiter order id for -pw (random if empty)")
	fs.BoolVar(&paid, "paid", true, "Set the order paid")
	fs.StringVar(&ck, "ck", os.Getenv("WC_CONSUMER_KEY"), "REST consumer key")
	fs.StringVar(&cs, "cs", os.Getenv("WC_CONSUMER_SECRET"), "REST consumer secret")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pwclient order [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}

	address := map[string]interface{}{
		"first_name": "Test", "last_name": "Buyer", "email": "buyer@example.com",
		"address_1": "1 Main St", "city": "Portland", "state": "OR",
		"postcode": "97201", "country": "US",
	}
	body := map[string]interface{}{
		"payment_method": payment,
		"set_paid":       paid,
		"currency":       "USD",
		"billing":        address,
		"shipping":       address,
		"line_items": []map[string]interface{}{
			{"product_id": productID, "quantity": qty},
		},
		"shipping_lines": []map[string]interface{}{
			{"method_id": "flat_rate", "method_title": "Flat Rate", "total": "5.00"},
		},
	}
	if pw {
		if pwID == "" {
			pwID = randomID()
		}
		body["payment_method"] = "pricewaiter"
		body["payment_method_title"] = "PriceWaiter"
		body["meta_data"] = []map[string]string{{"key": "_wc_pricewaiter_id", "value": pwID}}
	}
	if total != "" {
		body["total"] = total
	}

	resp, err := doJSON("POST", "/wp-json/wc/v3/orders", basicAuth(ck, cs), body)
	if err != nil {
		fatal("Failed to create order: %v", err)
	}

	id, _ := resp["id"].(string)
	if quiet {
		fmt.Println(id)
		return
	}
	printSuccess("Order created")
	fmt.Printf("  ID: %s%s%s\n", colorCyan, id, colorReset)
	if totals, ok := resp["totals"].(map[string]interface{}); ok {
		if t, ok := totals["total"].(float64); ok {
			fmt.Printf("  Total: %s%s%s\n", colorGreen, formatCents(t), colorReset)
		}
		if t, ok := totals["cart_tax"].(float64); ok {
			fmt.Printf("  Cart tax: %s\n", formatCents(t))
		}
	}
}

// =============================================================================
// SETTINGS COMMAND
// =============================================================================

func runSettings(args []string) {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	commonFlags(fs)

	var token, apiKey, tracking, object string
	var debug string
	fs.StringVar(&token, "token", os.Getenv("ADMIN_TOKEN"), "Admin bearer token")
	fs.StringVar(&apiKey, "api-key", "", "Set the PriceWaiter API key")
	fs.StringVar(&tracking, "tracking", "", "Set e-commerce tracking: ua (universal) or ga (classic)")
	fs.StringVar(&object, "object", "", "Set the tracking object name")
	fs.StringVar(&debug, "debug", "", "Set debug logging: on or off")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pwclient settings -token TOKEN [options]\n\nWith no setter flags the current settings are shown.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if noColor {
		disableColors()
	}
	if token == "" {
		fs.Usage()
		os.Exit(1)
	}

	current, err := doJSON("GET", "/admin/settings", bearer(token), nil)
	if err != nil {
		fatal("Failed to read settings: %v", err)
	}

	changed := false
	set := func(key, value string) {
		if value != "" {
			current[key] = value
			changed = true
		}
	}
	set("api_key", apiKey)
	set("ecommerce_tracking", tracking)
	set("ecommerce_tracking_object", object)
	switch strings.ToLower(debug) {
	case "":
	case "on", "true", "1":
		current["debug"], changed = true, true
	case "off", "false", "0":
		current["debug"], changed = false, true
	default:
		fatal("invalid -debug %q", debug)
	}

	if changed {
		delete(current, "customize_button_url")
		current, err = doJSON("PUT", "/admin/settings", bearer(token), current)
		if err != nil {
			fatal("Failed to save settings: %v", err)
		}
		printSuccess("Settings saved")
	}

	if quiet {
		out, _ := json.Marshal(current)
		fmt.Println(string(out))
		return
	}
	setup, _ := current["setup_complete"].(bool)
	fmt.Printf("  Setup complete: %s%v%s\n", colorCyan, setup, colorReset)
	fmt.Printf("  Tracking: %v\n", current["ecommerce_tracking"])
	if u, ok := current["customize_button_url"].(string); ok && u != "" {
		fmt.Printf("  Customize button: %s\n", u)
	}
}

// =============================================================================
// HTTP
// =============================================================================

func doForm(path string, form url.Values) (int, string, error) {
	encoded := form.Encode()
	req, err := http.NewRequest("POST", bridgeURL+path, strings.NewReader(encoded))
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if !quiet {
		printRequest("POST", path, nil)
		if verbose {
			fmt.Printf("  %s\n", encoded)
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("reading response: %w", err)
	}
	if !quiet {
		printResponse(resp.StatusCode, body, duration)
	}
	return resp.StatusCode, strings.TrimSpace(string(body)), nil
}

// bearer and basicAuth set request credentials; empty values send none.
func bearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

func basicAuth(user, pass string) func(*http.Request) {
	return func(req *http.Request) {
		if user != "" {
			req.SetBasicAuth(user, pass)
		}
	}
}

func doJSON(method, path string, auth func(*http.Request), body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, bridgeURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	auth(req)

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result, nil
}

func randomID() string {
	gen, err := nanoid.Standard(13)
	if err != nil {
		fatal("generating id: %v", err)
	}
	return "PW-" + gen()
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}

	output := pretty.String()
	if !verbose {
		lines := strings.Split(output, "\n")
		if len(lines) > 30 {
			lines = append(lines[:25], fmt.Sprintf("%s  %s(%d more lines, use -v for full output)%s", prefix, colorGray, len(lines)-25, colorReset))
			output = strings.Join(lines, "\n")
		}
	}
	fmt.Println(output)
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

func formatCents(v float64) string {
	return fmt.Sprintf("$%.2f", v/100)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
