package cmd

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seyalabs/media-hub/config"
	"github.com/seyalabs/media-hub/database/dbcore"
	accountsrepo "github.com/seyalabs/media-hub/database/repo/accounts"
	"github.com/seyalabs/media-hub/internal/transform"
)

// signCmd 本地签发变换 URL,调试与脚本用
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a transform URL for an asset",
	Example: `  media-hub sign --account 6f1c... --asset 9a42... --param w=200 --param fm=webp
  media-hub sign --account 6f1c... --asset 9a42... --ttl 24h`,
	Run: func(cmd *cobra.Command, args []string) {
		accountIdentifier, _ := cmd.Flags().GetString("account")
		assetIdentifier, _ := cmd.Flags().GetString("asset")
		rawParams, _ := cmd.Flags().GetStringArray("param")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if accountIdentifier == "" || assetIdentifier == "" {
			log.Fatal("--account and --asset are required")
		}

		values := url.Values{}
		for _, raw := range rawParams {
			key, value, found := strings.Cut(raw, "=")
			if !found {
				log.Fatalf("Invalid --param %q, expected key=value", raw)
			}
			values.Set(key, value)
		}
		if _, err := transform.ParseParams(values); err != nil {
			log.Fatalf("Invalid parameters: %v", err)
		}

		config.InitConfig()
		cfg := config.Get()
		db := dbcore.GetDBInstance()

		account, err := accountsrepo.NewAccountsRepository(db).GetByIdentifier(accountIdentifier)
		if err != nil {
			log.Fatalf("Failed to load account: %v", err)
		}

		signer := transform.NewSigner(cfg.TransformSignTTL)
		path := fmt.Sprintf("%s/%s/%s", transform.PathPrefix, account.Identifier, assetIdentifier)
		var expiresAt time.Time
		if ttl > 0 {
			expiresAt = time.Now().Add(ttl)
		}
		signed := signer.Sign(account.SigningSecret, path, values, expiresAt)

		fmt.Println(path + "?" + signed.Encode())

		if err := dbcore.CloseDB(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().String("account", "", "Account identifier")
	signCmd.Flags().String("asset", "", "Asset identifier")
	signCmd.Flags().StringArray("param", nil, "Transform parameter key=value (repeatable)")
	signCmd.Flags().Duration("ttl", 0, "Signature lifetime (default from config)")
}
