// Command hashpw prints a bcrypt hash for a password read from stdin.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"atelier.dev/internal/auth"
)

func main() {
	log.SetFlags(0)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		log.Fatal("usage: echo -n 'password' | hashpw")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		log.Fatal("empty password")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	fmt.Println(hash)
}
