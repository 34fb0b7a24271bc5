package main

import "github.com/averma/kyc-verify/cmd"

func main() {
	cmd.Execute()
}
