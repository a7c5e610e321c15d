// collab-client 是协作编码房间的终端客户端。
// 它加入房间并打开一个文件，打印其他成员的编辑与光标，把标准输入的每一行追加到缓冲区作为本地编辑。
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"collaborative-coding/internal/domain"
	"collaborative-coding/internal/dto"
	"collaborative-coding/internal/syncclient"
)

type options struct {
	server   string
	token    string
	room     string
	password string
	file     string
	path     string
	strategy string
	username string
	verbose  bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("collab-client", pflag.ContinueOnError)
	flagSet.StringVar(&opts.server, "server", "http://localhost:8080", "room service base URL")
	flagSet.StringVar(&opts.token, "token", os.Getenv("COLLAB_TOKEN"), "JWT issued by /api/auth/identity (default $COLLAB_TOKEN)")
	flagSet.StringVar(&opts.room, "room", "", "room ID to join")
	flagSet.StringVar(&opts.password, "password", "", "room password")
	flagSet.StringVar(&opts.file, "file", "", "file name to open")
	flagSet.StringVar(&opts.path, "path", "/", "folder path of the file")
	flagSet.StringVar(&opts.strategy, "strategy", syncclient.StrategyBroadcastFirst, "edit persistence strategy: broadcast-first or persist-first")
	flagSet.StringVar(&opts.username, "username", "", "display name sent with cursor updates")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.token == "" || opts.room == "" || opts.file == "" {
		return errors.New("--token, --room and --file are required")
	}
	strategy, err := syncclient.ParseStrategy(opts.strategy)
	if err != nil {
		return err
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)
	if opts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	userID, err := userIDFromToken(opts.token)
	if err != nil {
		return err
	}
	if opts.username == "" {
		opts.username = "user-" + userID
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := syncclient.NewHTTPFileStore(opts.server, opts.token, 15*time.Second)
	if err := store.JoinRoom(ctx, opts.room, opts.password); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	channel, err := syncclient.DialChannel(ctx, opts.server, opts.token)
	if err != nil {
		return err
	}
	defer channel.Close()

	buffer := syncclient.NewBuffer()
	session := syncclient.NewSession(syncclient.Options{
		RoomID:   opts.room,
		UserID:   userID,
		Username: opts.username,
		Strategy: strategy,
		OnEvent:  printEvent,
	}, buffer, channel, store)
	defer func() {
		session.Exit()
		session.Wait()
	}()

	listenErr := make(chan error, 1)
	go func() { listenErr <- channel.Listen(ctx, session.HandleFrame) }()

	if err := session.Join(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	node, err := session.OpenFile(ctx, opts.file, opts.path)
	if err != nil {
		return err
	}
	fmt.Printf("opened %s (%s), %d bytes, strategy %s\n", node.Key(), node.Language, len(node.Content), session.StrategyName())

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-listenErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("connection lost: %w", err)
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			content := buffer.GetValue()
			if content != "" && content[len(content)-1] != '\n' {
				content += "\n"
			}
			content += line
			if err := session.LocalEdit(ctx, content); err != nil {
				logrus.WithError(err).Warn("local edit failed")
				continue
			}
			buffer.SetCursor(lastPosition(content))
			session.SyncCursor()
		}
	}
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// lastPosition 返回文本末尾的光标位置
func lastPosition(content string) domain.Position {
	pos := domain.Position{Line: 1, Column: 1}
	for _, r := range content {
		if r == '\n' {
			pos.Line++
			pos.Column = 1
			continue
		}
		pos.Column++
	}
	return pos
}

func printEvent(e syncclient.RemoteEvent) {
	switch payload := e.Payload.(type) {
	case dto.CodeUpdate:
		if e.Applied {
			fmt.Printf("<< code-update %s (%d bytes)\n%s\n", payload.FilePath, len(payload.Code), payload.Code)
		} else {
			fmt.Printf("<< code-update for %s ignored (not open)\n", payload.FilePath)
		}
	case dto.CursorUpdate:
		fmt.Printf("<< %s at %d:%d\n", payload.Username, payload.Position.Line, payload.Position.Column)
	case dto.Joined:
		fmt.Printf("<< joined %s\n", payload.RoomID)
	case dto.ErrorMessage:
		fmt.Printf("<< error: %s\n", payload.Message)
	}
}

// userIDFromToken 读取 token 中的 user_id，签名由服务端校验
func userIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return "", errors.New("token carries no user_id claim")
	}
	return strconv.FormatUint(uint64(id), 10), nil
}
