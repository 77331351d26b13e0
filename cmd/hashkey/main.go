// Command hashkey prints the bcrypt hash of an operator API key for
// AUTH_API_KEY_HASH.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spec-kit/firm-ops/internal/auth"
	"github.com/spec-kit/firm-ops/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read key: %v", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		log.Fatal("usage: hashkey <api-key> (or pipe the key on stdin)")
	}

	hashed, err := auth.HashSecret(key, cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatalf("hash key: %v", err)
	}
	fmt.Println(hashed)
}
