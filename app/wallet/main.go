package main

import "github.com/copperchain/blockchain/app/wallet/cmd"

func main() {
	cmd.Execute()
}
