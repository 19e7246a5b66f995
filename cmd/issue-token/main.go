package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// issue-token mints a student token the way the login subsystem would,
// for local testing of the exam stream.
func main() {
	var userID, examName, fullName string
	flag.StringVar(&userID, "user", "", "Student user ID (required)")
	flag.StringVar(&examName, "exam", "", "Exam name the token grants (required)")
	flag.StringVar(&fullName, "name", "", "Student display name")
	flag.Parse()

	if userID == "" || examName == "" {
		fmt.Fprintln(os.Stderr, "Usage: issue-token -user <id> -exam <name> [-name <full name>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Load()
	token, err := service.NewAuthService(cfg).GenerateStudentToken(userID, examName, fullName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
