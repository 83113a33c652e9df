package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-editor/internal/domain/catalog"
	"github.com/xenking/catalog-editor/internal/domain/reconcile"
)

func refName(refs []catalog.Ref, id int64) string {
	for _, r := range refs {
		if r.ID == id {
			return r.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func printRefs(w io.Writer, refs catalog.ReferenceData) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, set := range []struct {
		title string
		refs  []catalog.Ref
	}{
		{"category", refs.Categories},
		{"brand", refs.Brands},
		{"color", refs.Colors},
	} {
		for _, r := range set.refs {
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", set.title, r.ID, r.Name)
		}
	}
	return tw.Flush()
}

func printProducts(w io.Writer, products []catalog.Product, refs catalog.ReferenceData) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tBRAND\tVARIANTS")
	for _, p := range products {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n",
			p.ID, p.Name, refName(refs.Categories, p.CategoryID), refName(refs.Brands, p.BrandID), len(p.Variants))
	}
	return tw.Flush()
}

func printProduct(w io.Writer, p *catalog.Product, refs catalog.ReferenceData) error {
	_, _ = fmt.Fprintf(w, "Product %d: %s\n", p.ID, p.Name)
	if p.Description != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", p.Description)
	}
	_, _ = fmt.Fprintf(w, "Category: %s  Brand: %s\n\n",
		refName(refs.Categories, p.CategoryID), refName(refs.Brands, p.BrandID))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tID\tCOLOR\tSIZE\tPRICE\tSTOCK\tSKU\tIMAGES")
	for i, v := range p.Variants {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\t%s\t%d\n",
			i, v.ID, refName(refs.Colors, v.ColorID), v.Size, v.Price.StringFixed(2), v.Stock, v.SKU, len(v.Images))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for i, v := range p.Variants {
		for j, img := range v.Images {
			_, _ = fmt.Fprintf(w, "  image %d:%d %s\n", i, j, img.Ref())
		}
	}
	return nil
}

func printReport(w io.Writer, rep *reconcile.Report) {
	if rep.Created {
		_, _ = fmt.Fprintf(w, "Created: %s (%d images)\n", rep.Message, rep.ImagesUploaded)
		return
	}
	_, _ = fmt.Fprintf(w, "Saved product %d: %d variants updated, %d images uploaded\n",
		rep.ProductID, rep.VariantsUpdated, rep.ImagesUploaded)
}

// describeSaveError renders a failed save for the operator.
func describeSaveError(err error) string {
	var verr *catalog.ValidationError
	if errors.As(err, &verr) {
		return "not saved, fix these fields: " + verr.Error()
	}
	var serr *reconcile.SyncError
	if !errors.As(err, &serr) {
		return "save failed: " + err.Error()
	}

	msg := "save failed at " + serr.Step.String()
	if serr.Index >= 0 {
		msg += fmt.Sprintf(" (variant %d", serr.Index)
		if serr.ImageIndex >= 0 {
			msg += fmt.Sprintf(", image %d", serr.ImageIndex)
		}
		msg += ")"
	}
	var rej *catalog.RejectedError
	if errors.As(err, &rej) {
		return fmt.Sprintf("%s: server answered %d: %s", msg, rej.Status, rej.Message)
	}
	if serr.Step == reconcile.StepRefresh {
		return msg + ": changes were saved but the product list could not be reloaded: " + serr.Err.Error()
	}
	return msg + ": " + serr.Err.Error()
}
