// Package main provides the cotask-keytool binary.
//
// The server only relays ciphertext; all key material lives client-side.
// This tool is the reference client for that boundary: it manages the local
// keystore, generates content keys, wraps them for other members' public
// keys and opens wrapped keys received from the key relay.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flvvius/cotask/internal/crypto"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		keystorePath string
		insecure     bool
	)

	cmd := &cobra.Command{
		Use:           "cotask-keytool",
		Short:         "Manage CoTask client-side key material",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&keystorePath, "keystore", crypto.DefaultKeystorePath(),
		"path to the local keystore file")
	cmd.PersistentFlags().BoolVar(&insecure, "insecure", false,
		"use the test-only base64 provider instead of NaCl")

	provider := func() crypto.Provider {
		if insecure {
			fmt.Fprintln(os.Stderr, "WARNING: insecure provider selected, output is NOT encrypted")
			return crypto.NewInsecureProvider()
		}
		return crypto.NewNaClProvider()
	}
	keystore := func() *crypto.Keystore {
		return crypto.NewKeystore(keystorePath)
	}

	cmd.AddCommand(
		keygenCmd(provider, keystore),
		showCmd(keystore),
		genkeyCmd(provider),
		wrapCmd(provider, keystore),
		unwrapCmd(provider, keystore),
		encryptCmd(provider),
		decryptCmd(provider),
	)
	return cmd
}

func keygenCmd(provider func() crypto.Provider, keystore func() *crypto.Keystore) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Create the device keypair if none exists and print the public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, err := keystore().EnsureKeyPair(provider())
			if err != nil {
				return err
			}
			fmt.Println(pair.PublicKey)
			return nil
		},
	}
}

func showCmd(keystore func() *crypto.Keystore) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, found, err := keystore().LoadKeyPair()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no keypair stored, run keygen first")
			}
			fmt.Println(pair.PublicKey)
			return nil
		},
	}
}

func genkeyCmd(provider func() crypto.Provider) *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a fresh symmetric content key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := provider().GenerateSymmetricKey()
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
}

func wrapCmd(provider func() crypto.Provider, keystore func() *crypto.Keystore) *cobra.Command {
	var (
		symmetricKey string
		recipients   []string
	)

	cmd := &cobra.Command{
		Use:   "wrap",
		Short: "Wrap a content key for one or more recipients' public keys",
		Long: `Seals the symmetric content key once per recipient using the stored
private key. The output is JSON suitable for the task access grant endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, found, err := keystore().LoadKeyPair()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no keypair stored, run keygen first")
			}

			wrapped, err := crypto.WrapKeyForRecipients(provider(), symmetricKey, recipients, pair.PrivateKey)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(wrapped)
		},
	}
	cmd.Flags().StringVar(&symmetricKey, "key", "", "symmetric content key (base64)")
	cmd.Flags().StringArrayVar(&recipients, "recipient", nil, "recipient public key (repeatable)")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}

func unwrapCmd(provider func() crypto.Provider, keystore func() *crypto.Keystore) *cobra.Command {
	var (
		ciphertext string
		nonce      string
		senderPub  string
	)

	cmd := &cobra.Command{
		Use:   "unwrap",
		Short: "Open a wrapped content key received from the key relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, found, err := keystore().LoadKeyPair()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no keypair stored, run keygen first")
			}

			key, err := provider().UnwrapKey(crypto.SealedBox{
				Ciphertext: ciphertext,
				Nonce:      nonce,
			}, senderPub, pair.PrivateKey)
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
	cmd.Flags().StringVar(&ciphertext, "ciphertext", "", "wrapped key ciphertext")
	cmd.Flags().StringVar(&nonce, "nonce", "", "wrap nonce")
	cmd.Flags().StringVar(&senderPub, "sender", "", "granter's public key")
	_ = cmd.MarkFlagRequired("ciphertext")
	_ = cmd.MarkFlagRequired("nonce")
	_ = cmd.MarkFlagRequired("sender")
	return cmd
}

func encryptCmd(provider func() crypto.Provider) *cobra.Command {
	var symmetricKey string

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt stdin under a content key, printing a sealed box as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			sealed, err := provider().Encrypt(plaintext, symmetricKey)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(sealed)
		},
	}
	cmd.Flags().StringVar(&symmetricKey, "key", "", "symmetric content key (base64)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func decryptCmd(provider func() crypto.Provider) *cobra.Command {
	var (
		symmetricKey string
		ciphertext   string
		nonce        string
	)

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Open a sealed box and print the plaintext",
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, err := provider().Decrypt(crypto.SealedBox{
				Ciphertext: ciphertext,
				Nonce:      nonce,
			}, symmetricKey)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(plain)
			return err
		},
	}
	cmd.Flags().StringVar(&symmetricKey, "key", "", "symmetric content key (base64)")
	cmd.Flags().StringVar(&ciphertext, "ciphertext", "", "sealed ciphertext")
	cmd.Flags().StringVar(&nonce, "nonce", "", "seal nonce")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("ciphertext")
	_ = cmd.MarkFlagRequired("nonce")
	return cmd
}
