package photomatch

import (
	dombatch "github.com/kailas-cloud/photomatch/internal/domain/batch"
	"github.com/kailas-cloud/photomatch/internal/domain/product"
	"github.com/kailas-cloud/photomatch/internal/domain/search/result"
	cataloguc "github.com/kailas-cloud/photomatch/internal/usecase/catalog"
	ingestuc "github.com/kailas-cloud/photomatch/internal/usecase/ingest"
)

func fromInternalProduct(p *product.Product) Product {
	images := make([]Image, len(p.Images()))
	for i, img := range p.Images() {
		images[i] = Image{ID: img.ID(), Path: img.Path(), DisplayOrder: img.DisplayOrder()}
	}
	return Product{
		ID:              p.ID(),
		ModelName:       p.ModelName(),
		ProductName:     p.ProductName(),
		Price:           p.Price(),
		MaintenanceTime: p.MaintenanceTime(),
		CreatedAt:       p.CreatedAt(),
		Images:          images,
	}
}

func fromInternalPage(page cataloguc.Page) ProductPage {
	products := make([]Product, len(page.Items))
	for i := range page.Items {
		products[i] = fromInternalProduct(&page.Items[i])
	}
	return ProductPage{Products: products, Total: page.Total, Limit: page.Limit, Offset: page.Offset}
}

func fromInternalMatches(matches []result.Match) []Match {
	out := make([]Match, len(matches))
	for i := range matches {
		m := &matches[i]
		p := m.Product()
		out[i] = Match{
			Product:       fromInternalProduct(&p),
			BestImageID:   m.BestImageID(),
			BestImagePath: m.BestImagePath(),
			Images:        m.Images(),
			Score:         m.Score(),
		}
	}
	return out
}

func fromInternalReport(rep ingestuc.Report) IngestReport {
	entries := make([]IngestEntry, len(rep.Entries))
	for i, e := range rep.Entries {
		entries[i] = fromInternalEntry(e)
	}
	return IngestReport{
		NewProducts:     rep.NewProducts,
		ImagesAdded:     rep.ImagesAdded,
		UpdatedProducts: rep.UpdatedProducts,
		Skipped:         rep.Skipped,
		Entries:         entries,
	}
}

func fromInternalEntry(e dombatch.Result) IngestEntry {
	return IngestEntry{
		Name:      e.Name(),
		Status:    string(e.Status()),
		ProductID: e.ProductID(),
		Reason:    e.Reason(),
	}
}

func toInternalUpdate(u ProductUpdate) product.Update {
	return product.Update{
		ModelName:       u.ModelName,
		ProductName:     u.ProductName,
		Price:           u.Price,
		MaintenanceTime: u.MaintenanceTime,
	}
}

func toInternalOrders(orders []ImageOrder) []product.OrderUpdate {
	out := make([]product.OrderUpdate, len(orders))
	for i, o := range orders {
		out[i] = product.OrderUpdate{ImageID: o.ImageID, Order: o.Order}
	}
	return out
}

func toInternalFiles(files []File) []cataloguc.File {
	out := make([]cataloguc.File, len(files))
	for i, f := range files {
		out[i] = cataloguc.File(f)
	}
	return out
}
