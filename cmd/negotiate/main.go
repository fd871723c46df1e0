package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"eventhub/internal/api"
	"eventhub/internal/channel"
	"eventhub/internal/chat"
	"eventhub/internal/config"
	"eventhub/internal/model"
	"eventhub/internal/payment"
)

func main() {
	vendorID := flag.String("vendor", "", "vendor to negotiate with (customer side)")
	threadID := flag.String("thread", "", "thread to open directly")
	listingID := flag.String("listing", "", "listing the offer form starts from")
	userID := flag.String("user", "", "acting user id, overrides USER_ID")
	userType := flag.String("as", "", "CUSTOMER or VENDOR, overrides USER_TYPE")
	flag.Parse()

	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  .env file not found, using default values: %v", err)
	}
	cfg := config.Load()
	if *userID != "" {
		cfg.UserID = *userID
	}
	if *userType != "" {
		cfg.UserType = strings.ToUpper(*userType)
	}

	side := model.SenderType(cfg.UserType)
	if cfg.UserID == "" || !side.Valid() {
		log.Fatalf("❌ USER_ID and USER_TYPE (CUSTOMER or VENDOR) are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(cfg.APIURL, cfg.UserID, side)
	out := newView(os.Stdout, cfg.UserID)

	var sess *chat.Session
	flow := payment.NewFlow(payment.NewHTTPGateway(client), func(ctx context.Context) error {
		return sess.RefreshOffers(ctx)
	})
	sess = chat.NewSession(chat.Config{
		UserID:   cfg.UserID,
		UserType: side,
		PageSize: cfg.HistoryPageSize,
		OnPayment: func(o model.Offer) {
			s, err := flow.Open(o)
			if err != nil {
				out.errorf("%v", err)
				return
			}
			out.due(s)
		},
		OnUpdate: func(u chat.Update) { out.update(sess, u) },
	}, client)
	defer sess.Close()

	// リアルタイム接続: 失敗してもHTTPで続行
	ch := channel.New(channel.Config{
		URL:            cfg.WSURL,
		UserID:         cfg.UserID,
		UserType:       side,
		ReconnectDelay: cfg.ReconnectDelay,
		Heartbeat:      cfg.HeartbeatPeriod,
	}, sess.Handlers())
	defer ch.Close()
	sess.Attach(ch)
	if err := ch.Connect(ctx); err != nil {
		log.Printf("⚠️  Real-time channel unavailable, sending over HTTP: %v", err)
	}

	if *threadID != "" {
		err := sess.Open(ctx, *threadID)
		if err != nil {
			log.Fatalf("❌ Failed to open thread: %v", err)
		}
	} else if *vendorID != "" {
		if _, err := sess.OpenVendor(ctx, *vendorID); err != nil {
			log.Fatalf("❌ Failed to open conversation: %v", err)
		}
	}

	form := &chat.OfferForm{}
	if *listingID != "" {
		if _, err := sess.LoadListing(ctx, *listingID, form); err != nil {
			log.Printf("⚠️  Failed to load listing %s: %v", *listingID, err)
		}
	}

	fmt.Println("========================================")
	fmt.Println("  EventHub Negotiation")
	fmt.Println("========================================")
	fmt.Printf("  User: %s (%s)\n", cfg.UserID, side)
	fmt.Printf("  Thread: %s\n", sess.ThreadID())
	fmt.Printf("  API: %s\n", cfg.APIURL)
	fmt.Println("  Type /help for commands")
	fmt.Println("========================================")
	out.history(sess)

	cli := &commands{
		sess:   sess,
		client: client,
		flow:   flow,
		form:   form,
		view:   out,
		side:   side,
	}
	// スレッド未指定なら受信箱から選ぶ
	if sess.ThreadID() == "" {
		if err := cli.threads(ctx); err != nil {
			log.Printf("⚠️  Failed to load conversations: %v", err)
		}
		fmt.Println("  Use /open <threadId> to start")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !cli.run(ctx, line) {
			return
		}
	}
}
