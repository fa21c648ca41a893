package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/tetherim/tether/internal/config"
	"github.com/tetherim/tether/internal/identity"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/internal/session"
	"github.com/tetherim/tether/internal/store"
	"github.com/tetherim/tether/pkg/prefs"
)

func main() {
	cfg := config.Load()

	pfs, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		log.Fatal(err)
	}
	defer pfs.Close()

	id, err := loadIdentity(pfs)
	if err != nil {
		log.Fatal(err)
	}
	self, _ := id.CurrentUser()
	log.Printf("signed in as %s", self.Username)

	api := remote.NewClient(cfg.APIBaseURL, id.Token())
	sess := session.New(cfg, api, id, nil)
	defer sess.Close()

	// Print message and typing activity as it is committed to the store.
	st := sess.Store()
	unsubscribe := st.Subscribe(func(ch store.Change) {
		if ch.Entity == store.EntityTyping {
			states := st.Typing(ch.ChatID)
			if len(states) == 0 {
				return
			}
			names := make([]string, 0, len(states))
			for _, ts := range states {
				name := ts.UserID.String()
				if u, ok := st.User(ts.UserID); ok {
					name = u.DisplayName
				}
				names = append(names, name)
			}
			fmt.Printf("[%s] typing: %s\n", ch.ChatID, strings.Join(names, ", "))
			return
		}
		if ch.Entity != store.EntityMessage || ch.Op == store.OpRemove {
			return
		}
		msg, ok := st.Message(ch.ID)
		if !ok || msg.Deleted() {
			return
		}
		author := msg.AuthorID.String()
		if u, ok := st.User(msg.AuthorID); ok {
			author = u.DisplayName
		}
		content := ""
		if msg.Content != nil {
			content = *msg.Content
		}
		if len(msg.Media) > 0 {
			content = fmt.Sprintf("%s [%d attachment(s)]", content, len(msg.Media))
		}
		marker := ""
		if msg.Pending {
			marker = " (sending)"
		}
		fmt.Printf("[%s] %s: %s%s\n", msg.ChatID, author, content, marker)
	})
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(ctx); err != nil {
		log.Fatal(err)
	}
	log.Printf("synced %d chats", len(st.Chats()))

	go repl(ctx, sess, id)
	<-ctx.Done()
	log.Println("shutting down")
}

// loadIdentity prefers a token from the environment (remembering it),
// falling back to the stored session.
func loadIdentity(pfs *prefs.Store) (*identity.Identity, error) {
	if token := os.Getenv("TETHER_TOKEN"); token != "" {
		id, err := identity.FromToken(token)
		if err != nil {
			return nil, err
		}
		if err := id.Save(pfs); err != nil {
			return nil, err
		}
		return id, nil
	}
	id, err := identity.Load(pfs)
	if errors.Is(err, identity.ErrNoStoredSession) {
		return nil, errors.New("no session: set TETHER_TOKEN")
	}
	return id, err
}

// repl reads "<chat-id> <text>" lines from stdin and sends them.
// "/profile <display name>" renames the signed-in user.
func repl(ctx context.Context, sess *session.Session, id *identity.Identity) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if name, ok := strings.CutPrefix(line, "/profile "); ok {
			user, err := sess.Commands().UpdateProfile(ctx, name, nil, nil)
			if err != nil {
				log.Printf("profile update failed: %v", err)
				continue
			}
			id.Refresh(*user)
			log.Printf("now known as %s", user.DisplayName)
			continue
		}
		chatStr, text, ok := strings.Cut(line, " ")
		if !ok {
			log.Println("usage: <chat-id> <text> | /profile <display name>")
			continue
		}
		chatID, err := uuid.Parse(chatStr)
		if err != nil {
			log.Printf("bad chat id: %v", err)
			continue
		}
		if _, err := sess.Commands().SendMessage(ctx, chatID, text, nil, nil); err != nil {
			log.Printf("send failed: %v", err)
		}
	}
}
