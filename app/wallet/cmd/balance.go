package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/copperchain/blockchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

// balanceCmd represents the balance command.
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the balance for the specified wallet",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}
		account := signature.PublicKeyToAccount(privateKey.PublicKey)
		fmt.Println("For Account:", account)

		resp, err := http.Get(fmt.Sprintf("%s/v1/balances/%s", url, account))
		if err != nil {
			log.Fatal(err)
		}
		defer resp.Body.Close()

		var balance struct {
			Account string  `json:"account"`
			Balance float64 `json:"balance"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
			log.Fatal(err)
		}

		fmt.Println(balance.Balance)
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}
